package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10
	// MaxPasswordBytes is the longest password bcrypt hashes without truncation.
	MaxPasswordBytes = 72
)

// dummyHash stands in for the stored hash of a user that does not exist, so
// login for an unknown name costs as much as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("roomchat-no-such-user"), bcryptCost)
	return hash
})

func hashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// passwordMatches reports whether password matches the stored hash. An empty
// hash never matches.
func passwordMatches(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
