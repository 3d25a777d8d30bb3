package accesstoken

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleshuang3/authsession/internal/types"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret)
	require.NoError(t, err)
	return c
}

func TestNewCodecEmptySecret(t *testing.T) {
	_, err := NewCodec("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssueAndVerify(t *testing.T) {
	c := newTestCodec(t)
	userID := types.NewUserID()

	before := time.Now()
	tok, err := c.Issue(userID)
	require.NoError(t, err)

	assert.Equal(t, userID, tok.UserID())
	assert.WithinDuration(t, before.Add(TTL), tok.ExpiresAt(), 2*time.Second)

	verified, err := c.Verify(tok.String())
	require.NoError(t, err)
	assert.Equal(t, userID, verified.UserID())
	assert.Equal(t, tok.String(), verified.String())
}

func TestVerifyWrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(testSecret + "x")
	require.NoError(t, err)

	tok, err := other.Issue(types.NewUserID())
	require.NoError(t, err)

	_, err = c.Verify(tok.String())
	assert.Error(t, err)
}

func TestVerifyTampered(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue(types.NewUserID())
	require.NoError(t, err)

	raw := tok.String()
	tampered := raw[:len(raw)-2] + "xx"
	_, err = c.Verify(tampered)
	assert.Error(t, err)

	_, err = c.Verify("not.a.jwt")
	assert.Error(t, err)
}

func TestVerifyDoesNotCheckExpiry(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-2 * TTL) }

	tok, err := c.Issue(types.NewUserID())
	require.NoError(t, err)

	verified, err := c.Verify(tok.String())
	require.NoError(t, err, "signature is still valid")
	assert.True(t, verified.Expired(time.Now()))
}

func TestVerifyRejectsUnexpectedPayload(t *testing.T) {
	c := newTestCodec(t)

	token, err := jwt.NewBuilder().
		Expiration(time.Now().Add(time.Hour)).
		Claim("sub", "someone").
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), []byte(testSecret)))
	require.NoError(t, err)

	_, err = c.Verify(string(signed))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	token, err = jwt.NewBuilder().
		Expiration(time.Now().Add(time.Hour)).
		Claim(userIDClaim, "not-a-uuid").
		Build()
	require.NoError(t, err)
	signed, err = jwt.Sign(token, jwt.WithKey(jwa.HS256(), []byte(testSecret)))
	require.NoError(t, err)

	_, err = c.Verify(string(signed))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestExpiringWithin(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		expiresAt time.Time
		threshold time.Duration
		want      bool
	}{
		{"already expired", now.Add(-time.Second), 15 * time.Minute, true},
		{"expires exactly now", now, 15 * time.Minute, true},
		{"inside threshold", now.Add(10 * time.Minute), 15 * time.Minute, true},
		{"outside threshold", now.Add(30 * time.Minute), 15 * time.Minute, false},
		{"zero threshold live token", now.Add(time.Minute), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &AccessToken{expiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, tok.ExpiringWithin(tt.threshold, now))
		})
	}
}

func TestJSONRoundTripsRawToken(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue(types.NewUserID())
	require.NoError(t, err)

	b, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.Equal(t, `"`+tok.String()+`"`, string(b))

	decoded := &AccessToken{}
	require.NoError(t, json.Unmarshal(b, decoded))
	assert.Equal(t, tok.String(), decoded.String())
	assert.Equal(t, tok.UserID(), decoded.UserID())
	assert.Equal(t, tok.ExpiresAt().Unix(), decoded.ExpiresAt().Unix())

	assert.Error(t, json.Unmarshal([]byte(`"garbage"`), decoded))
}
