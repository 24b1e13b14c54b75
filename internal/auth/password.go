// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// PASSWORD HASHING
// =============================================================================

const (
	// DefaultIterations is the PBKDF2-SHA-256 work factor for new hashes.
	DefaultIterations = 600000

	saltSize = 16
	keySize  = 32

	hashScheme = "pbkdf2-sha256"
)

// hashPassword returns an encoded "pbkdf2-sha256$iter$salt$key" string.
func hashPassword(password string, iterations int) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)

	enc := base64.RawStdEncoding
	return strings.Join([]string{
		hashScheme,
		strconv.Itoa(iterations),
		enc.EncodeToString(salt),
		enc.EncodeToString(key),
	}, "$"), nil
}

// verifyPassword checks password against an encoded hash in constant time.
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != hashScheme {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := enc.DecodeString(parts[3])
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
