// Package fixtures builds transactions and batches for tests.
package fixtures

import (
	"fmt"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
	"github.com/davidleathers/kyt-auditor/internal/domain/values"
)

// TransactionBuilder builds test Transaction entities
type TransactionBuilder struct {
	tx kyt.Transaction
}

// NewTransactionBuilder creates a builder for a USD wire of 100 on account A1
func NewTransactionBuilder(id string) *TransactionBuilder {
	return &TransactionBuilder{tx: kyt.Transaction{
		ID:        id,
		AccountID: "A1",
		Amount:    values.MustAmount(100),
		Currency:  "USD",
		Type:      "wire",
	}}
}

// WithAccount sets the account ID
func (b *TransactionBuilder) WithAccount(accountID string) *TransactionBuilder {
	b.tx.AccountID = accountID
	return b
}

// WithAmount sets the amount
func (b *TransactionBuilder) WithAmount(amount float64) *TransactionBuilder {
	b.tx.Amount = values.MustAmount(amount)
	return b
}

// WithCountry sets the country name or code
func (b *TransactionBuilder) WithCountry(country string) *TransactionBuilder {
	b.tx.Country = country
	return b
}

// WithType sets the transaction type
func (b *TransactionBuilder) WithType(txType string) *TransactionBuilder {
	b.tx.Type = txType
	return b
}

// WithSender sets the sender name
func (b *TransactionBuilder) WithSender(name string) *TransactionBuilder {
	b.tx.SenderName = name
	return b
}

// WithReceiver sets the receiver name
func (b *TransactionBuilder) WithReceiver(name string) *TransactionBuilder {
	b.tx.ReceiverName = name
	return b
}

// Suspicious sets the suspicious flag
func (b *TransactionBuilder) Suspicious() *TransactionBuilder {
	b.tx.SuspiciousFlag = true
	return b
}

// Build returns the transaction
func (b *TransactionBuilder) Build() kyt.Transaction {
	return b.tx
}

// EndToEndBatch is the two-transaction batch that must rate HIGH with two
// high-risk transactions.
func EndToEndBatch() []kyt.Transaction {
	return []kyt.Transaction{
		{ID: "T1", AccountID: "A1", Amount: values.MustAmount(9500), Country: "US"},
		{ID: "T2", AccountID: "A1", Amount: values.MustAmount(50000), Country: "Iran"},
	}
}

// StructuringBatch returns n sub-threshold transactions on one account
// whose total exceeds the reporting threshold when n >= 2.
func StructuringBatch(accountID string, n int) []kyt.Transaction {
	batch := make([]kyt.Transaction, n)
	for i := range batch {
		batch[i] = NewTransactionBuilder(fmt.Sprintf("S%d", i+1)).
			WithAccount(accountID).
			WithAmount(9000 + float64(i)*250).
			Build()
	}
	return batch
}

// SanctionedPartyBatch returns one small transaction per party name.
func SanctionedPartyBatch(names ...string) []kyt.Transaction {
	batch := make([]kyt.Transaction, len(names))
	for i, name := range names {
		batch[i] = NewTransactionBuilder(fmt.Sprintf("P%d", i+1)).
			WithAccount(fmt.Sprintf("A%d", i+1)).
			WithSender(name).
			Build()
	}
	return batch
}
