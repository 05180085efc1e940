package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Admin holds the single operator account allowed to mutate inventory
type Admin struct {
	Username     string
	PasswordHash string
}

// Authenticate checks the supplied credentials. The hash comparison runs
// even when the username is wrong so both failures take the same time.
func (a Admin) Authenticate(username, password string) error {
	if a.Username == "" || a.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	passOK := CheckPassword(password, a.PasswordHash)
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}
