package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Fingerprint hashes a run's kind, seed and parameters. Two runs with the same
// fingerprint replay to identical results.
func Fingerprint(kind string, seed int64, params interface{}) (Hash, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params for fingerprint: %w", err)
	}
	return NewHash([]byte(fmt.Sprintf("%s|%d|%s", kind, seed, payload))), nil
}
