package blockchain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument marks a construction error the caller must fix.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidOperation marks a state machine violation, e.g. re-mining.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidState marks a data integrity failure found by verification.
	ErrInvalidState = errors.New("invalid block state")
)

// Violation names the invariant a block failed.
type Violation string

const (
	ViolationState   Violation = "state"
	ViolationLinkage Violation = "linkage"
	ViolationPrefix  Violation = "prefix"
	ViolationHash    Violation = "hash"
	ViolationGenesis Violation = "genesis"
)

type BlockStateError struct {
	Height    uint64
	Hash      string
	Violation Violation
	Detail    string
}

func (e *BlockStateError) Error() string {
	return fmt.Sprintf("%s at height %d with hash %s: %s (%s)", ErrInvalidState, e.Height, e.Hash, e.Detail, e.Violation)
}

func (e *BlockStateError) Unwrap() error {
	return ErrInvalidState
}

func stateError(height uint64, hash string, violation Violation, format string, args ...interface{}) error {
	return &BlockStateError{
		Height:    height,
		Hash:      hash,
		Violation: violation,
		Detail:    fmt.Sprintf(format, args...),
	}
}
