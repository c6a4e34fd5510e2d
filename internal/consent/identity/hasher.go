// Package identity derives the email signals used for matching: a keyed
// one-way email hash and, optionally, proof that the visitor controls the
// address.
package identity

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hasher computes keyed BLAKE2b-256 digests of normalized email addresses.
type Hasher struct {
	key []byte
}

// NewHasher builds a hasher. BLAKE2b accepts keys of at most 64 bytes.
func NewHasher(key string) (*Hasher, error) {
	if key == "" {
		return nil, fmt.Errorf("email hash key is required")
	}
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("email hash key must be at most %d bytes", blake2b.Size)
	}
	return &Hasher{key: []byte(key)}, nil
}

// Hash returns the hex digest of the normalized email, or "" for an empty one.
func (h *Hasher) Hash(email string) string {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return ""
	}
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is checked in NewHasher
		panic(err)
	}
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
