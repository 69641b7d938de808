package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hasher maps a preimage to a fixed-width hex digest.
// Implementations must be safe for concurrent use.
type Hasher interface {
	ComputeHash(input string) string
}

type Sha256Hasher struct{}

func (Sha256Hasher) ComputeHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

type DoubleSha256Hasher struct{}

func (DoubleSha256Hasher) ComputeHash(input string) string {
	first := sha256.Sum256([]byte(input))
	second := sha256.Sum256(first[:])
	return strings.ToUpper(hex.EncodeToString(second[:]))
}

func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256":
		return Sha256Hasher{}, nil
	case "sha256d":
		return DoubleSha256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}

// DigestWidth is the length of the hex digest produced by hasher.
func DigestWidth(hasher Hasher) int {
	return len(hasher.ComputeHash(""))
}

func TargetPrefix(c byte, n int) string {
	return strings.Repeat(string(c), n)
}
