// Package contract is the wire contract shared by the server handlers and the
// device client: routes, request bodies, payloads, error codes and the
// response envelopes.
package contract

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/types"
)

// Code is a domain error code sent in an Err or AuthErr envelope.
type Code string

func (c Code) Error() string { return string(c) }

const (
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeInvalidPassword    Code = "INVALID_PASSWORD"
	CodeInvalid            Code = "INVALID"
	CodeEmailAlreadyExists Code = "EMAIL_ALREADY_EXISTS"
	CodeUnauthorised       Code = "UNAUTHORISED"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
)

// Envelope tags, sent in the "_t" field.
const (
	TagOk          = "Ok"
	TagErr         = "Err"
	TagServerError = "ServerError"

	TagAuthOk          = "AuthOk"
	TagAuthErr         = "AuthErr"
	TagAuthServerError = "AuthServerError"
)

// Envelope is the body of every API response. Which fields are set depends on
// Tag: Data for Ok, Code for Err, ErrorID for ServerError.
type Envelope[T any] struct {
	Tag     string `json:"_t"`
	Data    *T     `json:"data,omitempty"`
	Code    Code   `json:"code,omitempty"`
	ErrorID string `json:"errorID,omitempty"`
}

// Endpoint is a route with its method.
type Endpoint struct {
	Method string
	Route  string
}

var (
	Login         = Endpoint{Method: http.MethodPost, Route: "/login"}
	RefreshToken  = Endpoint{Method: http.MethodPost, Route: "/refresh-token"}
	Logout        = Endpoint{Method: http.MethodPost, Route: "/logout"}
	UpdateProfile = Endpoint{Method: http.MethodPut, Route: "/update-profile"}
	Home          = Endpoint{Method: http.MethodGet, Route: "/home"}
)

var ErrMissingField = errors.New("missing field")

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// User is the public view of a user.
type User struct {
	ID    types.UserID `json:"id"`
	Name  types.Name   `json:"name"`
	Email types.Email  `json:"email"`
}

type LoginBody struct {
	Email    types.Email    `json:"email"`
	Password types.Password `json:"password"`
}

func (b *LoginBody) Validate() error {
	switch {
	case b.Email.IsZero():
		return missing("email")
	case b.Password.IsZero():
		return missing("password")
	}
	return nil
}

// AuthPayload is returned by Login and RefreshToken.
type AuthPayload struct {
	User         User                     `json:"user"`
	AccessToken  *accesstoken.AccessToken `json:"accessToken"`
	RefreshToken types.RefreshToken       `json:"refreshToken"`
}

// RefreshTokenBody carries the user id since the access token may have expired.
type RefreshTokenBody struct {
	UserID       types.UserID       `json:"userID"`
	RefreshToken types.RefreshToken `json:"refreshToken"`
}

func (b *RefreshTokenBody) Validate() error {
	switch {
	case b.UserID.IsZero():
		return missing("userID")
	case b.RefreshToken.IsZero():
		return missing("refreshToken")
	}
	return nil
}

type UpdateProfileBody struct {
	Name  types.Name  `json:"name"`
	Email types.Email `json:"email"`
	// NewPassword is optional, nil keeps the current password.
	NewPassword     *types.Password `json:"newPassword"`
	CurrentPassword types.Password  `json:"currentPassword"`
}

func (b *UpdateProfileBody) Validate() error {
	switch {
	case b.Name.IsZero():
		return missing("name")
	case b.Email.IsZero():
		return missing("email")
	case b.CurrentPassword.IsZero():
		return missing("currentPassword")
	}
	return nil
}

// UserPayload is returned by UpdateProfile and Home.
type UserPayload struct {
	User User `json:"user"`
}

// NoBody is the body of endpoints that take none.
type NoBody struct{}

// NoPayload is the payload of endpoints that return none, encoded as {}.
type NoPayload struct{}

// Validator is implemented by bodies with required fields. Missing JSON fields
// decode to zero values, so presence is checked after decoding.
type Validator interface {
	Validate() error
}
