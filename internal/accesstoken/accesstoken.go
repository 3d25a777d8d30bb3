// Package accesstoken issues and verifies the short-lived HS256 access token.
//
// The token carries the user id in a "userID" claim and an "exp" claim.
// A valid signature says nothing about expiry: callers that need a live token
// check Expired themselves.
package accesstoken

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/charleshuang3/authsession/internal/types"
)

const (
	// TTL of an access token, fixed at issuance.
	TTL = time.Hour

	userIDClaim = "userID"
)

var (
	ErrEmptySecret    = errors.New("accesstoken: empty secret")
	ErrInvalidPayload = errors.New("accesstoken: invalid payload")
)

// AccessToken is a parsed access token. The raw form is kept as issued since
// re-encoding a JWT is not guaranteed to reproduce the signed bytes.
type AccessToken struct {
	raw       string
	userID    types.UserID
	expiresAt time.Time
}

func (a *AccessToken) String() string { return a.raw }

func (a *AccessToken) UserID() types.UserID { return a.userID }

func (a *AccessToken) ExpiresAt() time.Time { return a.expiresAt }

func (a *AccessToken) Expired(now time.Time) bool {
	return !now.Before(a.expiresAt)
}

// ExpiringWithin reports whether the token has expired or will expire within d.
func (a *AccessToken) ExpiringWithin(d time.Duration, now time.Time) bool {
	left := a.expiresAt.Sub(now)
	if left <= 0 {
		return true
	}
	return left < d
}

func (a *AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.raw)
}

// UnmarshalJSON parses without verifying, it is for clients holding a token
// they received from the server.
func (a *AccessToken) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseUnverified(s)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

// ParseUnverified decodes the payload without checking the signature.
func ParseUnverified(raw string) (*AccessToken, error) {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("accesstoken: parse: %w", err)
	}
	return fromJWT(raw, tok)
}

func fromJWT(raw string, tok jwt.Token) (*AccessToken, error) {
	exp, ok := tok.Expiration()
	if !ok {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidPayload)
	}

	var s string
	if err := tok.Get(userIDClaim, &s); err != nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPayload, userIDClaim)
	}
	userID, err := types.ParseUserID(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &AccessToken{
		raw:       raw,
		userID:    userID,
		expiresAt: exp,
	}, nil
}

// Codec signs and verifies access tokens with a shared secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

func (c *Codec) Issue(userID types.UserID) (*AccessToken, error) {
	now := c.now()
	token, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(TTL)).
		Claim(userIDClaim, userID.String()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build access token claims: %v", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), c.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %v", err)
	}

	return fromJWT(string(signed), token)
}

// Verify checks the signature and the payload shape. It does not check exp.
func (c *Codec) Verify(raw string) (*AccessToken, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256(), c.secret),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("accesstoken: verify: %w", err)
	}
	return fromJWT(raw, tok)
}
