// Package codes generates redemption codes and checks values against
// operator-supplied allowlists.
package codes

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
)

// Alphabet omits characters that are easy to misread (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the number of characters in a generated code.
const Length = 12

// Generate returns n distinct random codes.
func Generate(n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("code count must be positive, got %d", n)
	}
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		c, err := generateOne()
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func generateOne() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	// 256 is not a multiple of len(Alphabet); reject the tail to stay uniform
	limit := byte(256 - 256%len(Alphabet))
	out := make([]byte, 0, Length)
	for len(out) < Length {
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == Length {
				break
			}
		}
		if len(out) < Length {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("read random bytes: %w", err)
			}
		}
	}
	return string(out), nil
}

// WellFormed reports whether s could be a generated code.
func WellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Allowlist holds normalized values loaded from configuration.
type Allowlist struct {
	normalize func(string) string
	values    []string // Slice for constant-time iteration
}

// NewAllowlist normalizes and deduplicates values. A nil normalize
// trims and lowercases.
func NewAllowlist(values []string, normalize func(string) string) *Allowlist {
	if normalize == nil {
		normalize = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}
	seen := make(map[string]bool)
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		norm := normalize(v)
		if norm != "" && !seen[norm] {
			seen[norm] = true
			normalized = append(normalized, norm)
		}
	}
	return &Allowlist{normalize: normalize, values: normalized}
}

// Len returns the number of distinct entries.
func (a *Allowlist) Len() int {
	return len(a.values)
}

// Contains checks every entry with a constant-time comparison so timing
// does not reveal which entry matched.
func (a *Allowlist) Contains(value string) bool {
	normalized := []byte(a.normalize(value))
	if len(normalized) == 0 {
		return false
	}

	found := 0
	for _, v := range a.values {
		b := []byte(v)
		if subtle.ConstantTimeEq(int32(len(normalized)), int32(len(b))) == 1 {
			found |= subtle.ConstantTimeCompare(normalized, b)
		}
	}
	return found == 1
}
