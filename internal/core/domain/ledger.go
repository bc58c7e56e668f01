package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceChanges maps account ids to the signed delta to add to their balance.
type BalanceChanges map[string]decimal.Decimal

// Add accumulates delta onto accountID.
func (c BalanceChanges) Add(accountID string, delta decimal.Decimal) {
	c[accountID] = c[accountID].Add(delta)
}

// Inverse returns the changes that undo c.
func (c BalanceChanges) Inverse() BalanceChanges {
	inv := make(BalanceChanges, len(c))
	for id, delta := range c {
		inv[id] = delta.Neg()
	}
	return inv
}

// Merge returns the sum of c and other. Neither input is modified.
func (c BalanceChanges) Merge(other BalanceChanges) BalanceChanges {
	out := make(BalanceChanges, len(c)+len(other))
	for id, delta := range c {
		out.Add(id, delta)
	}
	for id, delta := range other {
		out.Add(id, delta)
	}
	return out
}

// Without returns a copy of c with accountID removed.
func (c BalanceChanges) Without(accountID string) BalanceChanges {
	out := make(BalanceChanges, len(c))
	for id, delta := range c {
		if id != accountID {
			out[id] = delta
		}
	}
	return out
}

// AccountIDs returns the touched account ids in sorted order, which is also the lock order.
func (c BalanceChanges) AccountIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsZero reports whether applying c would change nothing.
func (c BalanceChanges) IsZero() bool {
	for _, delta := range c {
		if !delta.IsZero() {
			return false
		}
	}
	return true
}

// SweepResult summarizes one run of the recurrence sweep.
type SweepResult struct {
	Claimed      int `json:"claimed"`
	Emitted      int `json:"emitted"`
	Deduplicated int `json:"deduplicated"`
	Advanced     int `json:"advanced"`
	Expired      int `json:"expired"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// ReconciliationReport compares an account's materialized balance with the one derived from its log.
type ReconciliationReport struct {
	AccountID        string          `json:"accountID"`
	StoredBalance    decimal.Decimal `json:"storedBalance"`
	ExpectedBalance  decimal.Decimal `json:"expectedBalance"`
	Drift            decimal.Decimal `json:"drift"`
	TransactionCount int             `json:"transactionCount"`
	Corrected        bool            `json:"corrected"`
}
