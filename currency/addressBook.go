package currency

import (
	"fmt"
	"sort"
	"strings"

	"zchain/blockchain"

	mapset "github.com/deckarep/golang-set/v2"
)

type Chain = blockchain.Chain[Transaction]

// AddressBook is a read-only report of the addresses seen on a chain and their
// net flow. Transfers are not checked against balances.
type AddressBook struct {
	addresses mapset.Set[string]
	netFlow   map[string]int64
}

func NewAddressBook() AddressBook {
	return AddressBook{
		addresses: mapset.NewThreadUnsafeSet[string](),
		netFlow:   make(map[string]int64),
	}
}

func NewAddressBookFromChain(chain *Chain) AddressBook {
	book := NewAddressBook()
	for _, b := range chain.Blocks() {
		book.Record(b.Payload())
	}
	return book
}

func (book *AddressBook) Record(txn Transaction) {
	book.addresses.Add(txn.FromAddress)
	book.addresses.Add(txn.ToAddress)
	book.netFlow[txn.FromAddress] -= txn.Amount
	book.netFlow[txn.ToAddress] += txn.Amount
}

func (book *AddressBook) Contains(address string) bool {
	return book.addresses.Contains(address)
}

// Addresses returns the known addresses in sorted order.
func (book *AddressBook) Addresses() []string {
	out := book.addresses.ToSlice()
	sort.Strings(out)
	return out
}

func (book *AddressBook) NetFlow(address string) int64 {
	return book.netFlow[address]
}

func (book AddressBook) String() string {
	var builder strings.Builder
	for _, address := range book.Addresses() {
		builder.WriteString(fmt.Sprintf("%s: %+d\n", address, book.netFlow[address]))
	}
	return builder.String()
}
