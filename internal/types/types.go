// Package types holds validated value types. Each one wraps its raw string in
// a struct so that an unchecked string cannot be passed where a validated one
// is expected; the only way in is through the Parse/New functions.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
)

var (
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrPasswordLength   = errors.New("password: minimum 8 characters")
	ErrPasswordNoNumber = errors.New("password: at least 1 number")
	ErrPasswordNoSymbol = errors.New("password: at least 1 symbol")
	ErrPasswordHasSpace = errors.New("password: must not contain space")
)

const (
	maxEmailLength        = 320
	maxNameLength         = 100
	maxRefreshTokenLength = 256
	minPasswordLength     = 8
)

// UserID is the primary key of a user, a UUID string.
type UserID struct {
	value string
}

func NewUserID() UserID {
	return UserID{value: uuid.NewString()}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return UserID{value: id.String()}, nil
}

func (id UserID) String() string { return id.value }

func (id UserID) IsZero() bool { return id.value == "" }

func (id UserID) MarshalJSON() ([]byte, error) { return json.Marshal(id.value) }

func (id *UserID) UnmarshalJSON(b []byte) error {
	return unmarshalString(b, func(s string) error {
		v, err := ParseUserID(s)
		*id = v
		return err
	})
}

// Email is a syntactically valid email address.
type Email struct {
	value string
}

func ParseEmail(s string) (Email, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailLength {
		return Email{}, ErrInvalidEmail
	}
	if err := checkmail.ValidateFormat(s); err != nil {
		return Email{}, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return Email{value: s}, nil
}

func (e Email) String() string { return e.value }

func (e Email) IsZero() bool { return e.value == "" }

func (e Email) MarshalJSON() ([]byte, error) { return json.Marshal(e.value) }

func (e *Email) UnmarshalJSON(b []byte) error {
	return unmarshalString(b, func(s string) error {
		v, err := ParseEmail(s)
		*e = v
		return err
	})
}

// Name is a display name of 1 to 100 characters.
type Name struct {
	value string
}

func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxNameLength {
		return Name{}, ErrInvalidName
	}
	return Name{value: s}, nil
}

func (n Name) String() string { return n.value }

func (n Name) IsZero() bool { return n.value == "" }

func (n Name) MarshalJSON() ([]byte, error) { return json.Marshal(n.value) }

func (n *Name) UnmarshalJSON(b []byte) error {
	return unmarshalString(b, func(s string) error {
		v, err := ParseName(s)
		*n = v
		return err
	})
}

var (
	passwordNumberRegex = regexp.MustCompile(`\d`)
	passwordSymbolRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)
	passwordSpaceRegex  = regexp.MustCompile(`\s`)
)

// Password is a plaintext password that satisfies the password rules:
// at least 8 characters, a number, a symbol and no whitespace.
// It is never persisted, only its hash is.
type Password struct {
	value string
}

func ParsePassword(s string) (Password, error) {
	if err := validatePassword(s); err != nil {
		return Password{}, err
	}
	return Password{value: s}, nil
}

// PasswordErrors returns every rule s breaks, for form feedback.
func PasswordErrors(s string) []error {
	var errs []error
	if len(s) < minPasswordLength {
		errs = append(errs, ErrPasswordLength)
	}
	if !passwordNumberRegex.MatchString(s) {
		errs = append(errs, ErrPasswordNoNumber)
	}
	if !passwordSymbolRegex.MatchString(s) {
		errs = append(errs, ErrPasswordNoSymbol)
	}
	if passwordSpaceRegex.MatchString(s) {
		errs = append(errs, ErrPasswordHasSpace)
	}
	return errs
}

func validatePassword(s string) error {
	if errs := PasswordErrors(s); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (p Password) String() string { return p.value }

func (p Password) IsZero() bool { return p.value == "" }

func (p Password) MarshalJSON() ([]byte, error) { return json.Marshal(p.value) }

func (p *Password) UnmarshalJSON(b []byte) error {
	return unmarshalString(b, func(s string) error {
		v, err := ParsePassword(s)
		*p = v
		return err
	})
}

// RefreshToken is the opaque value of a refresh token.
type RefreshToken struct {
	value string
}

// NewRefreshToken returns a fresh random token value.
func NewRefreshToken() RefreshToken {
	return RefreshToken{value: uuid.Must(uuid.NewV7()).String()}
}

func ParseRefreshToken(s string) (RefreshToken, error) {
	if s == "" || len(s) > maxRefreshTokenLength {
		return RefreshToken{}, ErrInvalidRefreshToken
	}
	return RefreshToken{value: s}, nil
}

func (t RefreshToken) String() string { return t.value }

func (t RefreshToken) IsZero() bool { return t.value == "" }

func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(t.value) }

func (t *RefreshToken) UnmarshalJSON(b []byte) error {
	return unmarshalString(b, func(s string) error {
		v, err := ParseRefreshToken(s)
		*t = v
		return err
	})
}

func unmarshalString(b []byte, parse func(string) error) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return parse(s)
}
