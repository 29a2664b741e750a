package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// LegacyHash is the unsalted SHA-256 hex digest older deployments stored.
func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// IsBcryptHash reports whether hash looks like a bcrypt hash.
func IsBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// CheckPasswordHash compares password with a bcrypt hash or a legacy
// SHA-256 hex digest.
func CheckPasswordHash(password, hashedPassword string) bool {
	if hashedPassword == "" {
		return false
	}
	if IsBcryptHash(hashedPassword) {
		return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
	}
	want := strings.ToLower(strings.TrimSpace(hashedPassword))
	got := LegacyHash(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
