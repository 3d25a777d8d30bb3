// Package password issues and verifies password hashes.
package password

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/charleshuang3/authsession/internal/types"
)

// Hasher turns plaintext passwords into stored hashes and checks them back.
type Hasher interface {
	Issue(p types.Password) (string, error)
	Verify(p types.Password, hash string) bool
}

type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a bcrypt Hasher, cost <= 0 means bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{Cost: cost}
}

func (b *Bcrypt) Issue(p types.Password) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(p.String()), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (b *Bcrypt) Verify(p types.Password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p.String())) == nil
}
