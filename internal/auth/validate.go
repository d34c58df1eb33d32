package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLength    = 254
	minPasswordLength = 8
	maxNameLength     = 100
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in *RegisterInput) normalize() {
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// Validate checks field presence and lengths. Call after normalize.
func (in RegisterInput) Validate() error {
	var verr ValidationError
	validateEmail(&verr, in.Email)
	switch {
	case in.Password == "":
		verr.Add("password", "password is required")
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		verr.Add("password", "password must be at least 8 characters")
	case len(in.Password) > MaxPasswordBytes:
		verr.Add("password", "password must be at most 72 bytes")
	}
	validateName(&verr, "first_name", in.FirstName)
	validateName(&verr, "last_name", in.LastName)
	return verr.Err()
}

func validateName(verr *ValidationError, field, value string) {
	switch {
	case value == "":
		verr.Add(field, field+" is required")
	case utf8.RuneCountInString(value) > maxNameLength:
		verr.Add(field, field+" must be at most 100 characters")
	}
}

// Validate checks that both credentials are present.
func (in LoginInput) Validate() error {
	var verr ValidationError
	validateEmail(&verr, NormalizeEmail(in.Email))
	if in.Password == "" {
		verr.Add("password", "password is required")
	}
	return verr.Err()
}

func validateEmail(verr *ValidationError, email string) {
	if email == "" {
		verr.Add("email", "email is required")
		return
	}
	if len(email) > maxEmailLength {
		verr.Add("email", "email is too long")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		verr.Add("email", "email must be a valid address")
	}
}
