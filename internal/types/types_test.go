package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	id := NewUserID()
	parsed, err := ParseUserID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseUserID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	assert.True(t, UserID{}.IsZero())
}

func TestParseEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice@example.com", "alice@example.com", false},
		{"  alice@example.com ", "alice@example.com", false},
		{"", "", true},
		{"alice", "", true},
		{"alice@", "", true},
		{strings.Repeat("a", 320) + "@example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEmail(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseName(t *testing.T) {
	got, err := ParseName(" Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.String())

	_, err = ParseName(strings.Repeat("名", 100))
	assert.NoError(t, err)

	_, err = ParseName(strings.Repeat("名", 101))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = ParseName("   ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParsePassword(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"Qwe1234#", nil},
		{"Qw1#", ErrPasswordLength},
		{"Qwerty#!", ErrPasswordNoNumber},
		{"Qwerty12", ErrPasswordNoSymbol},
		{"Qwe 1234#", ErrPasswordHasSpace},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParsePassword(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, []error{ErrPasswordLength, ErrPasswordNoNumber, ErrPasswordNoSymbol}, PasswordErrors("abc"))
}

func TestRefreshToken(t *testing.T) {
	a := NewRefreshToken()
	b := NewRefreshToken()
	assert.NotEqual(t, a, b)

	parsed, err := ParseRefreshToken(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseRefreshToken("")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = ParseRefreshToken(strings.Repeat("x", 257))
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestUnmarshalValidates(t *testing.T) {
	var body struct {
		Email    Email    `json:"email"`
		Password Password `json:"password"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"email":"alice@example.com","password":"Qwe1234#"}`), &body))
	assert.Equal(t, "alice@example.com", body.Email.String())
	assert.Equal(t, "Qwe1234#", body.Password.String())

	err := json.Unmarshal([]byte(`{"email":"nope","password":"Qwe1234#"}`), &body)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	err = json.Unmarshal([]byte(`{"email":"alice@example.com","password":"short"}`), &body)
	assert.ErrorIs(t, err, ErrPasswordLength)

	err = json.Unmarshal([]byte(`{"email":1}`), &body)
	assert.Error(t, err)

	b, err := json.Marshal(body.Email)
	require.NoError(t, err)
	assert.Equal(t, `"alice@example.com"`, string(b))
}
