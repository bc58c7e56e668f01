package domain

import "time"

// TransactionFilter narrows a transaction listing. Zero values mean "no filter".
// The After* fields form a keyset cursor on (date DESC, created_at DESC, id DESC).
type TransactionFilter struct {
	AccountID       string
	TransactionType TransactionType
	From            *time.Time
	To              *time.Time
	RecurringOnly   bool
	Limit           int

	AfterDate      *time.Time
	AfterCreatedAt *time.Time
	AfterID        string
}
