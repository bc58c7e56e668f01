package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
)

// TransactionReader defines read operations for transactions
type TransactionReader interface {
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// FindTransactionByIdempotencyKey returns apperrors.ErrNotFound when no occurrence carries the key.
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)

	// ListTransactions returns the user's transactions matching filter, newest first.
	ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)

	// ListTransactionsByAccount returns every transaction with accountID as source or destination.
	ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error)
}

// TransactionWriter defines write operations for transactions
type TransactionWriter interface {
	// SaveTransaction inserts a transaction. A reused idempotency key yields apperrors.ErrDuplicate.
	SaveTransaction(ctx context.Context, txn domain.Transaction) error
	// UpdateTransaction rewrites the editable fields and drops any sweep lease on the row.
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error
	DeleteTransaction(ctx context.Context, transactionID string) error
}

// RecurringTemplateStore is the persistence side of the recurrence sweep.
type RecurringTemplateStore interface {
	// ClaimDueTemplates atomically leases up to limit recurring templates due on or before today
	// whose previous lease is absent or expired at now, setting claimed_until to leaseUntil.
	ClaimDueTemplates(ctx context.Context, today time.Time, now time.Time, leaseUntil time.Time, limit int) ([]domain.Transaction, error)

	// AdvanceTemplate stores the next scheduled date and recurring flag of a template that is still
	// recurring and still leased with claimedUntil. The lease is kept. A template stopped, edited or
	// reclaimed since the claim yields apperrors.ErrConflict.
	AdvanceTemplate(ctx context.Context, templateID string, claimedUntil time.Time, next time.Time, isRecurring bool, now time.Time) error

	// ReleaseTemplate drops the lease if it is still claimedUntil, without touching the schedule.
	ReleaseTemplate(ctx context.Context, templateID string, claimedUntil time.Time) error

	// StopTemplate clears the recurring flag and any lease.
	StopTemplate(ctx context.Context, templateID string, now time.Time) error
}

// TransactionRepositoryFacade combines all transaction-related repository interfaces
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
	RecurringTemplateStore
}
