package oauth2

import (
	"strconv"

	"github.com/jrsteele09/oamanage-auth/internal/utils"
)

// PlaceholderNickname is used when the provider profile has no usable name.
const PlaceholderNickname = "kakao-user"

// TokenResponse is the provider's token endpoint answer.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	ExpiresIn             int    `json:"expires_in,omitempty"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in,omitempty"`
	Scope                 string `json:"scope,omitempty"`
	IDToken               string `json:"id_token,omitempty"`

	// Subject is the verified id_token subject, empty when no id_token was checked.
	Subject string `json:"-"`
}

// Profile is the provider user narrowed to the fields the service relies on.
type Profile struct {
	ExternalID   string
	Nickname     string
	Email        *string
	ProfileImage *string
}

// kakaoUser mirrors the /v2/user/me payload.
type kakaoUser struct {
	ID          int64  `json:"id"`
	ConnectedAt string `json:"connected_at,omitempty"`
	Properties  *struct {
		Nickname       string `json:"nickname,omitempty"`
		ProfileImage   string `json:"profile_image,omitempty"`
		ThumbnailImage string `json:"thumbnail_image,omitempty"`
	} `json:"properties,omitempty"`
	KakaoAccount *kakaoAccount `json:"kakao_account,omitempty"`
}

type kakaoAccount struct {
	ProfileNeedsAgreement bool `json:"profile_needs_agreement,omitempty"`
	Profile               *struct {
		Nickname          string `json:"nickname,omitempty"`
		ProfileImageURL   string `json:"profile_image_url,omitempty"`
		ThumbnailImageURL string `json:"thumbnail_image_url,omitempty"`
	} `json:"profile,omitempty"`
	Name                string `json:"name,omitempty"`
	EmailNeedsAgreement bool   `json:"email_needs_agreement,omitempty"`
	IsEmailValid        *bool  `json:"is_email_valid,omitempty"`
	IsEmailVerified     *bool  `json:"is_email_verified,omitempty"`
	Email               string `json:"email,omitempty"`
	HasEmail            bool   `json:"has_email,omitempty"`
}

// missingConsent reports a profile the user did not agree to share. An
// account without profile, email or name counts as missing consent unless
// the legacy properties still carry a nickname.
func (u *kakaoUser) missingConsent() bool {
	a := u.KakaoAccount
	if a == nil || (a.ProfileNeedsAgreement && a.Profile == nil) {
		return true
	}
	if a.Profile != nil || a.Email != "" || a.Name != "" {
		return false
	}
	return u.Properties == nil || u.Properties.Nickname == ""
}

func (u *kakaoUser) profile() *Profile {
	var (
		accountNickname, accountImage string
		propNickname, propImage       string
		name, email                   string
	)
	if u.KakaoAccount != nil {
		name = u.KakaoAccount.Name
		if u.KakaoAccount.IsEmailValid == nil || *u.KakaoAccount.IsEmailValid {
			email = u.KakaoAccount.Email
		}
		if p := u.KakaoAccount.Profile; p != nil {
			accountNickname = p.Nickname
			accountImage = p.ProfileImageURL
		}
	}
	if u.Properties != nil {
		propNickname = u.Properties.Nickname
		propImage = u.Properties.ProfileImage
	}

	nickname := utils.FirstNonEmpty(accountNickname, propNickname, name)
	if nickname == "" {
		nickname = PlaceholderNickname
	}

	return &Profile{
		ExternalID:   strconv.FormatInt(u.ID, 10),
		Nickname:     nickname,
		Email:        utils.NonEmptyPtr(email),
		ProfileImage: utils.NonEmptyPtr(utils.FirstNonEmpty(accountImage, propImage)),
	}
}
