package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
)

const (
	passwordSaltBytes = 16
	passwordIters     = 100_000
)

// GenerateSaltHex returns a fresh random salt, hex-encoded.
func GenerateSaltHex() (string, error) {
	b := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword derives a hex digest via iterated SHA256(salt || password || prev).
func HashPassword(password, saltHex string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("invalid salt: %w", err)
	}
	var prev [32]byte
	for i := 0; i < passwordIters; i++ {
		h := sha256.New()
		_, _ = h.Write(salt)
		_, _ = h.Write([]byte(password))
		_, _ = h.Write(prev[:])
		copy(prev[:], h.Sum(nil))
	}
	return hex.EncodeToString(prev[:]), nil
}

// VerifyPassword checks password against the stored salt+hash pair.
func VerifyPassword(password, saltHex, wantHashHex string) bool {
	got, err := HashPassword(password, saltHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHashHex)) == 1
}

// VerifyAdminPassword checks the entered password against the configured
// admin credential. The hash+salt pair wins when present; otherwise the
// plaintext field is compared directly.
func VerifyAdminPassword(cfg config.AuthConfig, password string) bool {
	if password == "" {
		return false
	}
	if cfg.AdminPasswordHash != "" && cfg.AdminPasswordSalt != "" {
		return VerifyPassword(password, cfg.AdminPasswordSalt, cfg.AdminPasswordHash)
	}
	if cfg.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(cfg.AdminPassword)) == 1
}
