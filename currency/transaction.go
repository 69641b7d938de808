package currency

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// Transaction is the payload recorded in a block. The chain treats it as opaque.
type Transaction struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      int64  `json:"amount"`
}

func NewTransaction(from, to string, amount int64) Transaction {
	return Transaction{FromAddress: from, ToAddress: to, Amount: amount}
}

func (txn Transaction) String() string {
	return fmt.Sprintf("From %s, To %s, Amount %d", txn.FromAddress, txn.ToAddress, txn.Amount)
}

func (txn Transaction) Equal(other Transaction) bool {
	return txn == other
}

func (txn Transaction) Clone() Transaction {
	var out Transaction
	if err := copier.Copy(&out, &txn); err != nil {
		panic(err)
	}
	return out
}

// FromTransfer copies the matching fields of src (e.g. a plan entry) into a Transaction.
func FromTransfer(src interface{}) (Transaction, error) {
	var txn Transaction
	if err := copier.Copy(&txn, src); err != nil {
		return Transaction{}, errors.Wrap(err, "copy transfer")
	}
	if txn.FromAddress == "" || txn.ToAddress == "" {
		return Transaction{}, errors.Errorf("transfer %v is missing an address", src)
	}
	return txn, nil
}
