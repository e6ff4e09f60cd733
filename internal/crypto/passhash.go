// Package crypto hashes account passwords for the identity endpoints.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the length of the per-user salt stored next to the hash.
const SaltLen = 16

// Argon2id cost parameters.
const (
	hashTime    uint32 = 2
	hashMemory  uint32 = 19 * 1024 // 19 MiB
	hashThreads uint8  = 1
	hashLen     uint32 = 32
)

// NewSalt returns a fresh per-user salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashPassword derives the Argon2id hash of password under the given salt.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashLen)
}

// VerifyPassword reports whether password matches the stored hash. The
// comparison is constant time.
func VerifyPassword(password string, salt, want []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
