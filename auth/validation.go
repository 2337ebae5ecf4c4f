package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxNicknameLength = 30

// ProfileUpdate is the user editable part of an identity. Nil fields are left unchanged.
type ProfileUpdate struct {
	Nickname *string `json:"nickname"`
	Email    *string `json:"email"`
}

// Validate trims the supplied fields and checks them.
func (u *ProfileUpdate) Validate() error {
	if u.Nickname != nil {
		nickname := strings.TrimSpace(*u.Nickname)
		if nickname == "" {
			return fmt.Errorf("nickname must not be empty")
		}
		if utf8.RuneCountInString(nickname) > maxNicknameLength {
			return fmt.Errorf("nickname must be at most %d characters", maxNicknameLength)
		}
		u.Nickname = &nickname
	}

	if u.Email != nil {
		email := strings.TrimSpace(*u.Email)
		if err := ValidateEmail(email); err != nil {
			return err
		}
		u.Email = &email
	}
	return nil
}

// ValidateEmail accepts a bare address such as "hong@example.com".
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
