package services

import (
	"context"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/internal/dto"
)

// TransactionReaderSvc defines read operations for transactions
type TransactionReaderSvc interface {
	GetTransaction(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error)
	ListRecurringTemplates(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// TransactionWriterSvc defines write operations for transactions. Every write goes through the ledger.
type TransactionWriterSvc interface {
	CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, userID string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, userID string) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID string, userID string) error

	// StopRecurrence retires a recurring template without deleting it.
	StopRecurrence(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error)
}

// TransactionSvcFacade combines all transaction-related service interfaces
type TransactionSvcFacade interface {
	TransactionReaderSvc
	TransactionWriterSvc
}

// OccurrenceEmitter persists the concrete occurrence of a recurring template and applies it.
type OccurrenceEmitter interface {
	EmitOccurrence(ctx context.Context, template domain.Transaction, today time.Time, idempotencyKey string) (*domain.Transaction, error)
}

// LedgerSvc applies and reverses the balance effects of transactions.
type LedgerSvc interface {
	Apply(ctx context.Context, txn domain.Transaction) error
	Reverse(ctx context.Context, txn domain.Transaction) error

	// Reapply replaces the effect of before with the effect of after in one balance write.
	Reapply(ctx context.Context, before domain.Transaction, after domain.Transaction) error

	// Correct writes an arbitrary set of balance changes under the same account locks.
	Correct(ctx context.Context, changes domain.BalanceChanges, userID string) error
}

// RecurrenceSvc runs the recurring-transaction sweep.
type RecurrenceSvc interface {
	Sweep(ctx context.Context, now time.Time) (*domain.SweepResult, error)
}
