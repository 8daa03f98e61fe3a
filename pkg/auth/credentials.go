package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore verifies a username and password pair.
type CredentialStore interface {
	Verify(username, password string) bool
}

// StaticCredentials holds a single user with a bcrypt verifier.
type StaticCredentials struct {
	username string
	hash     []byte
}

// NewStaticCredentials accepts the password either in clear text or as a
// bcrypt hash.
func NewStaticCredentials(username, password string) (*StaticCredentials, error) {
	return NewStaticCredentialsWithCost(username, password, bcrypt.DefaultCost)
}

// NewStaticCredentialsWithCost is NewStaticCredentials with an explicit cost
// for hashing clear text passwords.
func NewStaticCredentialsWithCost(username, password string, cost int) (*StaticCredentials, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password must not be empty")
	}

	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return &StaticCredentials{username: username, hash: []byte(password)}, nil
	}

	hash, err := HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	return &StaticCredentials{username: username, hash: []byte(hash)}, nil
}

// Verify reports whether username and password match exactly.
func (s *StaticCredentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Always run bcrypt so timing does not reveal the username
	passErr := bcrypt.CompareHashAndPassword(s.hash, []byte(password))
	return userOK && passErr == nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("invalid cost %d (min=%d max=%d)", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}
