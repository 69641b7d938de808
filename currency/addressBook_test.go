package currency

import (
	"testing"

	"zchain/blockchain"
	"zchain/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressBookFromChain(t *testing.T) {
	genesis, err := blockchain.NewGenesisBlock(NewTransaction("First", "Second", 300), 1, util.Sha256Hasher{})
	require.NoError(t, err)
	chain, err := blockchain.NewChain(genesis)
	require.NoError(t, err)

	book := NewAddressBookFromChain(chain)
	assert.Equal(t, []string{"First", "Second"}, book.Addresses())
	assert.Equal(t, int64(-300), book.NetFlow("First"))
	assert.Equal(t, int64(300), book.NetFlow("Second"))
	assert.False(t, book.Contains("Third"))

	book.Record(NewTransaction("Second", "Third", 200))
	assert.True(t, book.Contains("Third"))
	assert.Equal(t, int64(100), book.NetFlow("Second"))
	assert.Equal(t, "First: -300\nSecond: +100\nThird: +200\n", book.String())
}
