// Package cryptox hashes and verifies the race PIN with argon2id.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize   = 16
	hashPrefix = "argon2id"
)

var ErrMalformedHash = errors.New("malformed pin hash")

// DeriveKey stretches secret with salt into a 32-byte key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// HashPIN returns "argon2id$<salt>$<key>" with a fresh random salt, both parts
// base64 (raw std) encoded.
func HashPIN(pin string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := DeriveKey([]byte(pin), salt)
	enc := base64.RawStdEncoding
	return strings.Join([]string{hashPrefix, enc.EncodeToString(salt), enc.EncodeToString(key)}, "$"), nil
}

// VerifyPIN reports whether pin matches a hash produced by HashPIN.
func VerifyPIN(pin, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return false, ErrMalformedHash
	}
	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := enc.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	got := DeriveKey([]byte(pin), salt)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
