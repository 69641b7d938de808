package blockchain

import (
	"fmt"
	"sync"
	"time"

	"zchain/jsonx"
	"zchain/util"

	"github.com/pkg/errors"
)

const (
	DefaultBufferCharacter byte = '0'

	// NewBlockHash is the hash of a block that has not been mined yet.
	NewBlockHash = "NEW_BLOCK"
)

type options struct {
	bufferCharacter byte
	layout          PreimageLayout
}

type Option func(*options)

func WithBufferCharacter(c byte) Option {
	return func(o *options) {
		o.bufferCharacter = c
	}
}

func WithPreimageLayout(layout PreimageLayout) Option {
	return func(o *options) {
		o.layout = layout
	}
}

func buildOptions(opts []Option) options {
	o := options{bufferCharacter: DefaultBufferCharacter, layout: ConcatLayout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Block links a payload to its parent and records the proof of work found for it.
// Everything but state, nonce, hash and the dates is fixed at construction.
type Block[T any] struct {
	parent     *Block[T]
	parentHash string
	height     uint64
	payload    T
	serialized string
	difficulty int
	hasher     util.Hasher
	opts       options
	premined   bool
	preimage   preimage

	mu              sync.RWMutex
	state           BlockState
	nonce           string
	hash            string
	beginMiningDate time.Time
	minedDate       time.Time
}

func newBlock[T any](parent *Block[T], payload T, difficulty int, hasher util.Hasher, opts []Option) (*Block[T], error) {
	if hasher == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "hasher cannot be nil")
	}
	if difficulty <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "difficulty must exceed 0, got %d", difficulty)
	}
	if width := util.DigestWidth(hasher); difficulty > width {
		return nil, errors.Wrapf(ErrInvalidArgument, "difficulty %d exceeds digest width %d", difficulty, width)
	}
	if util.IsNil(payload) {
		return nil, errors.Wrap(ErrInvalidArgument, "payload cannot be nil")
	}
	serialized, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "cannot serialize payload: %v", err)
	}

	b := &Block[T]{
		parent:     parent,
		payload:    payload,
		serialized: string(serialized),
		difficulty: difficulty,
		hasher:     hasher,
		opts:       buildOptions(opts),
		state:      New,
		hash:       NewBlockHash,
	}
	if parent != nil {
		b.parentHash = parent.Hash()
		b.height = parent.height + 1
	}
	b.preimage = newPreimage(b.opts.layout, b.height, b.parentHash, b.serialized, b.difficulty)
	return b, nil
}

// NewBlock creates a child of parent in the New state. The parent must already be mined.
func NewBlock[T any](parent *Block[T], payload T, difficulty int, hasher util.Hasher, opts ...Option) (*Block[T], error) {
	if parent == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "parent of block cannot be nil, create the genesis block with NewGenesisBlock")
	}
	if state := parent.State(); state != Mined {
		return nil, errors.Wrapf(ErrInvalidArgument, "parent at height %d is %s, not Mined", parent.height, state)
	}
	return newBlock(parent, payload, difficulty, hasher, opts)
}

// NewGenesisBlock creates a pre-mined root whose hash is the buffer character
// repeated to the hasher's digest width. No search is performed.
func NewGenesisBlock[T any](payload T, difficulty int, hasher util.Hasher, opts ...Option) (*Block[T], error) {
	b, err := newBlock[T](nil, payload, difficulty, hasher, opts)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	b.premined = true
	b.state = Mined
	b.hash = genesisSentinel(b.opts.bufferCharacter, hasher)
	b.beginMiningDate = now
	b.minedDate = now
	return b, nil
}

// NewRootBlock creates a parentless block at height 0 that still has to be mined.
func NewRootBlock[T any](payload T, difficulty int, hasher util.Hasher, opts ...Option) (*Block[T], error) {
	return newBlock[T](nil, payload, difficulty, hasher, opts)
}

func genesisSentinel(c byte, hasher util.Hasher) string {
	return util.TargetPrefix(c, util.DigestWidth(hasher))
}

// BeginMining moves the block from New to Mining.
func (b *Block[T]) BeginMining() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != New {
		return errors.Wrapf(ErrInvalidOperation, "cannot re-mine block at height %d in state %s", b.height, b.state)
	}
	b.beginMiningDate = time.Now()
	b.state = Mining
	return nil
}

// CommitMinedResult moves the block from Mining to Mined. The candidate is
// verified against the block and its whole ancestry before it is published;
// a rejected candidate leaves the block in Mining.
func (b *Block[T]) CommitMinedResult(nonce, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Mining {
		return errors.Wrapf(ErrInvalidOperation, "cannot set mined values of block at height %d in state %s", b.height, b.state)
	}
	if b.parent != nil {
		if err := b.parent.Verify(b.opts.bufferCharacter); err != nil {
			return errors.WithMessage(err, "could not set mined values")
		}
	}
	if err := b.checkValues(b.opts.bufferCharacter, nonce, hash); err != nil {
		return errors.WithMessage(err, "could not set mined values")
	}

	b.nonce = nonce
	b.hash = hash
	b.minedDate = time.Now()
	b.state = Mined
	return nil
}

// CalculateHash hashes the canonical preimage for nonce.
func (b *Block[T]) CalculateHash(nonce string) string {
	return b.hasher.ComputeHash(b.preimage.build(nonce))
}

// Preimage is the exact string hashed for nonce.
func (b *Block[T]) Preimage(nonce string) string {
	return b.preimage.build(nonce)
}

func (b *Block[T]) TargetPrefix() string {
	return util.TargetPrefix(b.opts.bufferCharacter, b.difficulty)
}

func (b *Block[T]) Parent() *Block[T] {
	return b.parent
}

func (b *Block[T]) ParentHash() string {
	return b.parentHash
}

func (b *Block[T]) Height() uint64 {
	return b.height
}

func (b *Block[T]) Payload() T {
	return b.payload
}

func (b *Block[T]) SerializedPayload() string {
	return b.serialized
}

func (b *Block[T]) Difficulty() int {
	return b.difficulty
}

func (b *Block[T]) BufferCharacter() byte {
	return b.opts.bufferCharacter
}

func (b *Block[T]) IsGenesis() bool {
	return b.parent == nil
}

func (b *Block[T]) State() BlockState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Block[T]) Nonce() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nonce
}

func (b *Block[T]) Hash() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hash
}

func (b *Block[T]) BeginMiningDate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.beginMiningDate
}

func (b *Block[T]) MinedDate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minedDate
}

// Elapsed is the time spent between BeginMining and the commit, zero until mined.
func (b *Block[T]) Elapsed() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != Mined {
		return 0
	}
	return b.minedDate.Sub(b.beginMiningDate)
}

func (b *Block[T]) String() string {
	var parentHash string
	if b.parent != nil {
		parentHash = b.parent.Hash()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var elapsed time.Duration
	if b.state == Mined {
		elapsed = b.minedDate.Sub(b.beginMiningDate)
	}
	return fmt.Sprintf("Hash: %s Parent Hash: %s Height: %d Transaction: %v Nonce: %s Difficulty: %d State: %s Begin Mining Date: %s Seconds to hash result: %.3f",
		b.hash, parentHash, b.height, b.payload, b.nonce, b.difficulty, b.state,
		b.beginMiningDate.Format(time.RFC3339Nano), elapsed.Seconds())
}

type blockSnapshot struct {
	Height          uint64      `json:"height"`
	ParentHash      string      `json:"parentHash"`
	Payload         interface{} `json:"payload"`
	Difficulty      int         `json:"difficulty"`
	State           string      `json:"state"`
	Nonce           string      `json:"nonce"`
	Hash            string      `json:"hash"`
	BeginMiningDate time.Time   `json:"beginMiningDate"`
	MinedDate       time.Time   `json:"minedDate"`
}

// MarshalJSON renders a point-in-time snapshot of the block.
func (b *Block[T]) MarshalJSON() ([]byte, error) {
	b.mu.RLock()
	snapshot := blockSnapshot{
		Height:          b.height,
		ParentHash:      b.parentHash,
		Payload:         b.payload,
		Difficulty:      b.difficulty,
		State:           b.state.String(),
		Nonce:           b.nonce,
		Hash:            b.hash,
		BeginMiningDate: b.beginMiningDate,
		MinedDate:       b.minedDate,
	}
	b.mu.RUnlock()
	return jsonx.Marshal(snapshot)
}
