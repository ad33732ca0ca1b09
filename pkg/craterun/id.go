package craterun

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IdLength is the length of a container ID in hex characters.
const IdLength = 16

// MinPrefixLength is the shortest prefix accepted by lookup commands.
const MinPrefixLength = 4

// NewId returns a fresh container ID: 64 cryptographically random bits
// rendered as 16 lowercase hex characters.
func NewId() string {
	u := uuid.New()
	// Bytes 6 and 8 of a v4 UUID carry its version and variant bits; skip
	// them so every bit of the ID is random.
	b := []byte{u[0], u[1], u[2], u[3], u[4], u[5], u[7], u[9]}
	return hex.EncodeToString(b)
}

// ValidIdPrefix reports whether prefix is lowercase hex of an acceptable
// lookup length.
func ValidIdPrefix(prefix string) bool {
	if len(prefix) < MinPrefixLength || len(prefix) > IdLength {
		return false
	}
	for _, c := range prefix {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ResolveId resolves a possibly abbreviated container ID against the set of
// known IDs. Matching is case-insensitive; a full-length exact match wins
// over prefix matches, otherwise exactly one candidate must remain.
func ResolveId(prefix string, known []string) (string, error) {
	prefix = strings.ToLower(prefix)
	if !ValidIdPrefix(prefix) {
		return "", fmt.Errorf("%w: invalid container ID prefix %q (want %d-%d lowercase hex chars)",
			ErrState, prefix, MinPrefixLength, IdLength)
	}

	if len(prefix) == IdLength {
		for _, id := range known {
			if id == prefix {
				return id, nil
			}
		}
	}

	var matches []string
	for _, id := range known {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no container found with ID prefix %q", ErrState, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: ambiguous container ID prefix %q: %d matches (%s)",
			ErrState, prefix, len(matches), strings.Join(matches, ", "))
	}
}
