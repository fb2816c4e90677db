package users

import (
	"golang.org/x/crypto/bcrypt"

	apperr "github.com/talentforge/talentforge-api/pkg/errors"
)

// MinPasswordLength applies to local registration only; provisioned
// external accounts have no password at all.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperr.Newf(apperr.CodeValidationFormat,
			"users: password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeInternal, "users: hashing password")
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash.
// Accounts without a hash (external-only) never match.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return apperr.New(apperr.CodeAuthenticationLocalFailed, "users: account has no password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperr.Wrap(err, apperr.CodeAuthenticationLocalFailed, "users: password mismatch")
	}
	return nil
}
