package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns a hex-encoded random secret of the given byte length
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateServerSecrets returns a JWT signing secret and a Redis requirepass value
func GenerateServerSecrets() (jwtSecret, redisPassword string, err error) {
	jwtSecret, err = GenerateSecret(32) // 256-bit
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}

	redisPassword, err = GenerateSecret(24)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate redis password: %w", err)
	}

	return jwtSecret, redisPassword, nil
}
