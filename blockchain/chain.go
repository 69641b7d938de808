package blockchain

import (
	"fmt"
	"strings"
	"sync"

	"zchain/logx"
	"zchain/util"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// Chain is an append-only sequence of mined blocks starting at a root.
// Only a child of the current tip can be appended.
type Chain[T any] struct {
	mu     sync.RWMutex
	blocks []*Block[T]
	hashes mapset.Set[string]
}

func NewChain[T any](root *Block[T]) (*Chain[T], error) {
	if root == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "root cannot be nil")
	}
	if !root.IsGenesis() {
		return nil, errors.Wrapf(ErrInvalidArgument, "root at height %d has a parent", root.Height())
	}
	if err := root.Validate(); err != nil {
		return nil, errors.WithMessage(err, "root failed verification")
	}
	return &Chain[T]{
		blocks: []*Block[T]{root},
		hashes: mapset.NewThreadUnsafeSet(root.Hash()),
	}, nil
}

func (chain *Chain[T]) Tip() *Block[T] {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	return *util.Last(chain.blocks)
}

func (chain *Chain[T]) Len() int {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	return len(chain.blocks)
}

func (chain *Chain[T]) Blocks() []*Block[T] {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	out := make([]*Block[T], len(chain.blocks))
	copy(out, chain.blocks)
	return out
}

// NextBlock builds an unmined child of the tip with the tip's hasher and options.
func (chain *Chain[T]) NextBlock(payload T, difficulty int) (*Block[T], error) {
	tip := chain.Tip()
	return NewBlock(tip, payload, difficulty, tip.hasher,
		WithBufferCharacter(tip.opts.bufferCharacter),
		WithPreimageLayout(tip.opts.layout))
}

// Append adds a mined child of the tip after verifying it.
func (chain *Chain[T]) Append(b *Block[T]) error {
	if b == nil {
		return errors.Wrap(ErrInvalidArgument, "block cannot be nil")
	}
	chain.mu.Lock()
	defer chain.mu.Unlock()

	tip := *util.Last(chain.blocks)
	if b.Parent() != tip {
		return errors.Wrapf(ErrInvalidOperation, "block at height %d is not a child of tip at height %d", b.Height(), tip.Height())
	}
	if err := b.Validate(); err != nil {
		return errors.WithMessage(err, "cannot append block")
	}
	hash := b.Hash()
	if chain.hashes.Contains(hash) {
		return errors.Wrapf(ErrInvalidOperation, "block hash %s already in chain", hash)
	}
	chain.blocks = append(chain.blocks, b)
	chain.hashes.Add(hash)
	logx.Debug("CHAIN", fmt.Sprintf("Appended block | height=%d | hash=%s", b.Height(), hash))
	return nil
}

// Validate verifies the whole chain by walking back from the tip.
func (chain *Chain[T]) Validate() error {
	return chain.Tip().Validate()
}

func (chain *Chain[T]) String() string {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("height: %d\n", len(chain.blocks)-1))
	for i, b := range chain.blocks {
		builder.WriteString(fmt.Sprintf("%d:(difficulty=%d) %s %v\n", i, b.Difficulty(), b.Hash(), b.Payload()))
	}
	return builder.String()
}
