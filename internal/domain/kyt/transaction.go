package kyt

import (
	"strings"

	"github.com/davidleathers/kyt-auditor/internal/domain/values"
)

// UnknownAccount groups transactions that arrive without an account id.
const UnknownAccount = "unknown"

// Transaction is a single ingested transaction. It is treated as immutable
// once a batch has been submitted.
type Transaction struct {
	ID             string        `json:"id" validate:"required"`
	AccountID      string        `json:"accountId" validate:"required"`
	Amount         values.Amount `json:"amount"`
	Currency       string        `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Country        string        `json:"country,omitempty"`
	Type           string        `json:"type,omitempty"`
	SenderName     string        `json:"senderName,omitempty"`
	ReceiverName   string        `json:"receiverName,omitempty"`
	Counterparty   string        `json:"counterparty,omitempty"`
	Beneficiary    string        `json:"beneficiary,omitempty"`
	SuspiciousFlag bool          `json:"suspiciousFlag,omitempty"`
}

// GroupKey returns the account used for cross-transaction grouping.
func (t Transaction) GroupKey() string {
	if strings.TrimSpace(t.AccountID) == "" {
		return UnknownAccount
	}
	return t.AccountID
}

// IsCash reports whether the transaction type denotes a cash movement.
func (t Transaction) IsCash() bool {
	return strings.Contains(strings.ToLower(t.Type), "cash")
}

// PartyNames returns the non-empty party names in field order.
func (t Transaction) PartyNames() []string {
	names := make([]string, 0, 4)
	for _, n := range []string{t.SenderName, t.ReceiverName, t.Counterparty, t.Beneficiary} {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
