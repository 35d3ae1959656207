// Package auth checks the administrator password for the private endpoint.
package auth

import (
	"errors"
	"fmt"

	"github.com/and161185/fleet-status/internal/errs"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword returns errs.ErrUnauthorized unless password matches hash.
// An empty hash rejects every password.
func CheckPassword(hash, password string) error {
	if hash == "" || password == "" {
		return errs.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	return nil
}
