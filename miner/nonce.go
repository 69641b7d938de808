package miner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Strategy int

const (
	// RandomNonce draws 32-hex-digit UUIDs; workers never collide in practice.
	RandomNonce Strategy = iota
	// RangedNonce scans a disjoint slice of [0, NonceSpace) per worker.
	RangedNonce
)

func (s Strategy) String() string {
	switch s {
	case RandomNonce:
		return "random"
	case RangedNonce:
		return "ranged"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return RandomNonce, nil
	case "ranged":
		return RangedNonce, nil
	default:
		return RandomNonce, fmt.Errorf("unknown mining strategy %q", s)
	}
}

var errRangeExhausted = errors.New("nonce range exhausted")

type nonceSource interface {
	next() (string, error)
}

type randomNonces struct{}

func (randomNonces) next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

type rangedNonces struct {
	cur uint64
	end uint64
}

func (r *rangedNonces) next() (string, error) {
	if r.cur >= r.end {
		return "", errRangeExhausted
	}
	n := r.cur
	r.cur++
	return strconv.FormatUint(n, 10), nil
}

// partition returns the half-open range [start, end) of worker i out of n.
// The last worker also takes the remainder.
func partition(space uint64, n, i int) (uint64, uint64) {
	per := space / uint64(n)
	start := uint64(i) * per
	end := start + per
	if i == n-1 {
		end = space
	}
	return start, end
}
