package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/jghoshh/wellspring/config"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier turns a password into its stored form and checks supplied
// passwords against it.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(stored, supplied string) bool
}

// PlaintextVerifier stores passwords as given and compares them directly. It keeps
// blobs written by the browser version of the tracker loadable.
type PlaintextVerifier struct{}

func (PlaintextVerifier) Hash(password string) (string, error) {
	return password, nil
}

func (PlaintextVerifier) Verify(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// BcryptVerifier stores bcrypt hashes.
type BcryptVerifier struct {
	Cost int
}

func (b BcryptVerifier) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (BcryptVerifier) Verify(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}

// NewVerifier returns the verifier named by PASSWORD_HASHING.
func NewVerifier(name string) (CredentialVerifier, error) {
	switch name {
	case config.HashPlaintext, "":
		return PlaintextVerifier{}, nil
	case config.HashBcrypt:
		return BcryptVerifier{}, nil
	}
	return nil, errors.New("unknown password hashing scheme: " + name)
}
