package users

import (
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// Provider is the login method an identity was created through.
type Provider string

const (
	ProviderKakao  Provider = "kakao"
	ProviderNaver  Provider = "naver"
	ProviderGoogle Provider = "google"
	ProviderTeams  Provider = "teams"
	ProviderLocal  Provider = "local"
)

var providers = []Provider{ProviderKakao, ProviderNaver, ProviderGoogle, ProviderTeams, ProviderLocal}

func (p Provider) Valid() bool {
	return slices.Contains(providers, p)
}

// Role is the authorization level of an identity.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleUser || r == RoleAdmin
}

// RoleOrDefault maps absent or unknown roles to RoleUser.
func RoleOrDefault(r Role) Role {
	if !r.Valid() {
		return RoleUser
	}
	return r
}

// Identity is an authenticated principal. Only ID is trusted for authorization,
// the remaining fields are descriptive.
type Identity struct {
	ID           int64    `json:"id"`
	Provider     Provider `json:"provider"`
	ExternalID   string   `json:"-"`
	Nickname     string   `json:"nickname"`
	Email        *string  `json:"email,omitempty"`
	ProfileImage *string  `json:"profile_image,omitempty"`
	Role         Role     `json:"role"`
	Score        *int     `json:"score,omitempty"`
	PasswordHash string   `json:"-"` // local accounts only, never serialize
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Clone returns a copy that shares no pointers with i.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.Email != nil {
		email := *i.Email
		c.Email = &email
	}
	if i.ProfileImage != nil {
		img := *i.ProfileImage
		c.ProfileImage = &img
	}
	if i.Score != nil {
		score := *i.Score
		c.Score = &score
	}
	return &c
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
