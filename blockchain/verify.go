package blockchain

import (
	"fmt"
	"strings"

	"zchain/logx"
	"zchain/util"
)

// Verify checks the block, then its parent, and so on back to the root.
// Nothing is memoized: each call walks the full ancestry.
func (b *Block[T]) Verify(bufferCharacter byte) error {
	for cur := b; cur != nil; cur = cur.parent {
		if err := cur.verifySelf(bufferCharacter); err != nil {
			return err
		}
	}
	return nil
}

// Validate verifies with the buffer character the block was built with.
func (b *Block[T]) Validate() error {
	return b.Verify(b.opts.bufferCharacter)
}

func (b *Block[T]) verifySelf(bufferCharacter byte) error {
	logx.Debug("BLOCK", fmt.Sprintf("Verifying block at height %d", b.height))

	b.mu.RLock()
	state, nonce, hash := b.state, b.nonce, b.hash
	b.mu.RUnlock()

	if state != Mined {
		return stateError(b.height, hash, ViolationState, "invalid block state %s", state)
	}
	return b.checkValues(bufferCharacter, nonce, hash)
}

// checkValues checks a (nonce, hash) pair against this block's own invariants.
// The caller decides whether the ancestry needs checking too.
func (b *Block[T]) checkValues(bufferCharacter byte, nonce, hash string) error {
	if b.parent == nil {
		if b.parentHash != "" {
			return stateError(b.height, hash, ViolationLinkage, "root block carries parent hash %s", b.parentHash)
		}
	} else if actual := b.parent.Hash(); actual != b.parentHash {
		return stateError(b.height, hash, ViolationLinkage, "invalid parent hash, expected %s, got %s", b.parentHash, actual)
	}

	if b.premined {
		if sentinel := genesisSentinel(bufferCharacter, b.hasher); hash != sentinel {
			return stateError(b.height, hash, ViolationGenesis, "genesis block hash incorrect, expected %s", sentinel)
		}
		return nil
	}

	target := util.TargetPrefix(bufferCharacter, b.difficulty)
	if !strings.HasPrefix(hash, target) {
		return stateError(b.height, hash, ViolationPrefix, "does not start with %d %q characters", b.difficulty, bufferCharacter)
	}

	if calculated := b.CalculateHash(nonce); calculated != hash {
		return stateError(b.height, hash, ViolationHash, "nonce was %s and calculated hash was %s", nonce, calculated)
	}
	return nil
}
