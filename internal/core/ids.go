package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// shortIDLength is the display length for abbreviated ids and hashes.
const shortIDLength = 8

// NewID returns a time-ordered UUIDv7 string.
// Lexicographic order of ids matches creation order at millisecond resolution.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// MustNewID is NewID for call sites where entropy failure is unrecoverable.
func MustNewID() string {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// HashContent returns the lowercase hex SHA-256 of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ShortID returns the last 8 characters of an id or hash for display.
func ShortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[len(id)-shortIDLength:]
}

// ShortHash returns the leading 8 characters of a content hash for display.
func ShortHash(hash string) string {
	if len(hash) <= shortIDLength {
		return hash
	}
	return hash[:shortIDLength]
}
