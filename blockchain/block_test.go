package blockchain

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"zchain/jsonx"
	"zchain/util"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int    `json:"amount"`
}

func (t transfer) String() string {
	return fmt.Sprintf("From %s, To %s, Amount %d", t.From, t.To, t.Amount)
}

var hasher = util.Sha256Hasher{}

func findNonce[T any](t *testing.T, b *Block[T]) (string, string) {
	t.Helper()
	prefix := b.TargetPrefix()
	for i := 0; i < 10_000_000; i++ {
		nonce := strconv.Itoa(i)
		if hash := b.CalculateHash(nonce); strings.HasPrefix(hash, prefix) {
			return nonce, hash
		}
	}
	require.FailNow(t, "no nonce found")
	return "", ""
}

func mine[T any](t *testing.T, b *Block[T]) {
	t.Helper()
	require.NoError(t, b.BeginMining())
	nonce, hash := findNonce(t, b)
	require.NoError(t, b.CommitMinedResult(nonce, hash))
}

func newGenesis(t *testing.T) *Block[transfer] {
	t.Helper()
	g, err := NewGenesisBlock(transfer{"x", "y", 1}, 1, hasher)
	require.NoError(t, err)
	return g
}

func TestGenesisBlock(t *testing.T) {
	g := newGenesis(t)
	assert.Equal(t, Mined, g.State())
	assert.Equal(t, uint64(0), g.Height())
	assert.Nil(t, g.Parent())
	assert.Equal(t, "", g.ParentHash())
	assert.Equal(t, strings.Repeat("0", 64), g.Hash())
	assert.True(t, g.IsGenesis())
	require.NoError(t, g.Validate())

	err := g.BeginMining()
	assert.True(t, errors.Is(err, ErrInvalidOperation))
	err = g.CommitMinedResult("n", g.Hash())
	assert.True(t, errors.Is(err, ErrInvalidOperation))
}

func TestConstructionErrors(t *testing.T) {
	g := newGenesis(t)

	_, err := NewBlock[transfer](nil, transfer{"a", "b", 2}, 1, hasher)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	for _, difficulty := range []int{0, -1, 65} {
		_, err = NewBlock(g, transfer{"a", "b", 2}, difficulty, hasher)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "difficulty %d", difficulty)
	}

	_, err = NewBlock(g, transfer{"a", "b", 2}, 1, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = NewGenesisBlock[*transfer](nil, 1, hasher)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = NewGenesisBlock(func() {}, 1, hasher)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	child, err := NewBlock(g, transfer{"a", "b", 2}, 1, hasher)
	require.NoError(t, err)
	_, err = NewBlock(child, transfer{"b", "c", 3}, 1, hasher)
	assert.True(t, errors.Is(err, ErrInvalidArgument), "unmined parent")
}

func TestNewChildBlock(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"Second_Address", "Third_Address", 200}, 2, hasher)
	require.NoError(t, err)

	assert.Equal(t, New, b.State())
	assert.Equal(t, NewBlockHash, b.Hash())
	assert.Equal(t, uint64(1), b.Height())
	assert.Equal(t, g.Hash(), b.ParentHash())
	assert.Same(t, g, b.Parent())
	assert.Equal(t, `{"from":"Second_Address","to":"Third_Address","amount":200}`, b.SerializedPayload())
	assert.Equal(t, "00", b.TargetPrefix())
	assert.Zero(t, b.Elapsed())
}

func TestPreimageDeterministic(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"Addr1", "Addr2", 100}, 3, hasher)
	require.NoError(t, err)

	want := "abc" + "1" + g.Hash() + `{"from":"Addr1","to":"Addr2","amount":100}` + "3"
	assert.Equal(t, want, b.Preimage("abc"))
	assert.Equal(t, b.Preimage("abc"), b.Preimage("abc"))
	assert.Equal(t, hasher.ComputeHash(want), b.CalculateHash("abc"))

	twin, err := NewBlock(g, transfer{"Addr1", "Addr2", 100}, 3, hasher)
	require.NoError(t, err)
	assert.Equal(t, b.CalculateHash("abc"), twin.CalculateHash("abc"))
}

func TestLengthPrefixedPreimage(t *testing.T) {
	g, err := NewGenesisBlock(transfer{"x", "y", 1}, 1, hasher, WithPreimageLayout(LengthPrefixedLayout))
	require.NoError(t, err)
	b, err := NewBlock(g, transfer{"a", "b", 1}, 1, hasher, WithPreimageLayout(LengthPrefixedLayout))
	require.NoError(t, err)

	payload := `{"from":"a","to":"b","amount":1}`
	want := "2:ab" + "1:1" + "64:" + g.Hash() + strconv.Itoa(len(payload)) + ":" + payload + "1:1"
	assert.Equal(t, want, b.Preimage("ab"))

	concat, err := NewBlock(g, transfer{"a", "b", 1}, 1, hasher)
	require.NoError(t, err)
	assert.NotEqual(t, concat.CalculateHash("ab"), b.CalculateHash("ab"))

	mine(t, b)
	require.NoError(t, b.Validate())
}

func TestParsePreimageLayout(t *testing.T) {
	l, err := ParsePreimageLayout("length_prefixed")
	require.NoError(t, err)
	assert.Equal(t, LengthPrefixedLayout, l)
	l, err = ParsePreimageLayout("")
	require.NoError(t, err)
	assert.Equal(t, ConcatLayout, l)
	_, err = ParsePreimageLayout("csv")
	assert.Error(t, err)
}

func TestStateMachine(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"a", "b", 5}, 1, hasher)
	require.NoError(t, err)

	err = b.CommitMinedResult("n", "0")
	assert.True(t, errors.Is(err, ErrInvalidOperation), "commit before mining")

	require.NoError(t, b.BeginMining())
	assert.Equal(t, Mining, b.State())
	assert.False(t, b.BeginMiningDate().IsZero())

	err = b.BeginMining()
	assert.True(t, errors.Is(err, ErrInvalidOperation), "begin twice")

	nonce, hash := findNonce(t, b)
	require.NoError(t, b.CommitMinedResult(nonce, hash))
	assert.Equal(t, Mined, b.State())
	assert.Equal(t, nonce, b.Nonce())
	assert.Equal(t, hash, b.Hash())
	assert.False(t, b.MinedDate().Before(b.BeginMiningDate()))

	err = b.BeginMining()
	assert.True(t, errors.Is(err, ErrInvalidOperation), "re-mine")
	err = b.CommitMinedResult(nonce, hash)
	assert.True(t, errors.Is(err, ErrInvalidOperation), "commit twice")
}

func TestRejectedCommitStaysMining(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"a", "b", 5}, 2, hasher)
	require.NoError(t, err)
	require.NoError(t, b.BeginMining())

	err = b.CommitMinedResult("bogus", "00FF")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	var stateErr *BlockStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, ViolationHash, stateErr.Violation)
	assert.Contains(t, err.Error(), "could not set mined values")

	err = b.CommitMinedResult("bogus", "FF00")
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, ViolationPrefix, stateErr.Violation)

	assert.Equal(t, Mining, b.State())
	assert.Equal(t, NewBlockHash, b.Hash())
	assert.Equal(t, "", b.Nonce())

	nonce, hash := findNonce(t, b)
	require.NoError(t, b.CommitMinedResult(nonce, hash))
	require.NoError(t, b.Validate())
}

func TestSingleCommit(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"a", "b", 5}, 2, hasher)
	require.NoError(t, err)
	require.NoError(t, b.BeginMining())
	nonce, hash := findNonce(t, b)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.CommitMinedResult(nonce, hash)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidOperation))
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, strings.HasPrefix(b.Hash(), "00"))
}

func TestRootBlockIsMinable(t *testing.T) {
	root, err := NewRootBlock(transfer{"First_Address", "Second_Address", 300}, 2, hasher)
	require.NoError(t, err)
	assert.Equal(t, New, root.State())
	assert.Equal(t, uint64(0), root.Height())

	mine(t, root)
	require.NoError(t, root.Validate())

	child, err := NewBlock(root, transfer{"Second_Address", "Third_Address", 200}, 2, hasher)
	require.NoError(t, err)
	mine(t, child)
	require.NoError(t, child.Validate())
}

func TestBufferCharacter(t *testing.T) {
	g, err := NewGenesisBlock(transfer{"x", "y", 1}, 1, hasher, WithBufferCharacter('A'))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("A", 64), g.Hash())
	require.NoError(t, g.Validate())

	err = g.Verify('0')
	var stateErr *BlockStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, ViolationGenesis, stateErr.Violation)

	b, err := NewBlock(g, transfer{"a", "b", 1}, 1, hasher, WithBufferCharacter('A'))
	require.NoError(t, err)
	assert.Equal(t, byte('A'), b.BufferCharacter())
	mine(t, b)
	assert.True(t, strings.HasPrefix(b.Hash(), "A"))
}

func TestStringAndJSON(t *testing.T) {
	g := newGenesis(t)
	b, err := NewBlock(g, transfer{"a", "b", 5}, 1, hasher)
	require.NoError(t, err)
	mine(t, b)

	s := b.String()
	assert.Contains(t, s, "Hash: "+b.Hash())
	assert.Contains(t, s, "Parent Hash: "+g.Hash())
	assert.Contains(t, s, "Transaction: From a, To b, Amount 5")
	assert.Contains(t, s, "State: Mined")

	raw, err := jsonx.Marshal(b)
	require.NoError(t, err)
	var snapshot map[string]interface{}
	require.NoError(t, jsonx.Unmarshal(raw, &snapshot))
	assert.Equal(t, b.Hash(), snapshot["hash"])
	assert.Equal(t, b.Nonce(), snapshot["nonce"])
	assert.Equal(t, "Mined", snapshot["state"])
	assert.Equal(t, float64(1), snapshot["height"])
	assert.Equal(t, "a", snapshot["payload"].(map[string]interface{})["from"])
}

func TestBlockStateString(t *testing.T) {
	assert.Equal(t, "New", New.String())
	assert.Equal(t, "Mining", Mining.String())
	assert.Equal(t, "Mined", Mined.String())
	assert.Equal(t, "Unknown", BlockState(9).String())
}
