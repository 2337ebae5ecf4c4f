package users

// Merge overlays the supplied fields of patch onto existing. Empty strings
// and nil pointers leave the existing value untouched. The ID never changes.
func Merge(existing, patch *Identity) *Identity {
	merged := existing.Clone()
	if patch.Provider != "" {
		merged.Provider = patch.Provider
	}
	if patch.ExternalID != "" {
		merged.ExternalID = patch.ExternalID
	}
	if patch.Nickname != "" {
		merged.Nickname = patch.Nickname
	}
	if patch.Email != nil {
		merged.Email = patch.Email
	}
	if patch.ProfileImage != nil {
		merged.ProfileImage = patch.ProfileImage
	}
	if patch.Role != "" {
		merged.Role = patch.Role
	}
	if patch.Score != nil {
		merged.Score = patch.Score
	}
	if patch.PasswordHash != "" {
		merged.PasswordHash = patch.PasswordHash
	}
	return merged
}

// MergeExternalLogin folds a fresh provider profile into an existing identity.
//
//	Nickname                          existing wins
//	Email, ProfileImage               incoming wins when the provider supplied it
//	ID, Role, Score, PasswordHash     existing wins
func MergeExternalLogin(existing, incoming *Identity) *Identity {
	merged := existing.Clone()
	if incoming.Email != nil {
		merged.Email = incoming.Email
	}
	if incoming.ProfileImage != nil {
		merged.ProfileImage = incoming.ProfileImage
	}
	if merged.Nickname == "" {
		merged.Nickname = incoming.Nickname
	}
	return merged
}

// NewExternalIdentity is the identity created on a provider's first login.
func NewExternalIdentity(incoming *Identity) *Identity {
	created := incoming.Clone()
	created.ID = 0
	created.Role = RoleOrDefault(created.Role)
	return created
}
