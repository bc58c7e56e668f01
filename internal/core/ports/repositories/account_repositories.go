package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
)

// AccountReader defines read operations for account data
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByIDs retrieves multiple accounts by their IDs. Missing ids are absent from the map.
	FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// ListAccountsByUser retrieves a page of the user's accounts ordered by creation time.
	ListAccountsByUser(ctx context.Context, userID string, limit int, offset int) ([]domain.Account, error)
}

// AccountWriter defines write operations for account data
type AccountWriter interface {
	// SaveAccount persists a new account. A taken account number yields apperrors.ErrDuplicate.
	SaveAccount(ctx context.Context, account domain.Account) error

	// UpdateAccount updates an existing account's descriptive fields. Balance is not written.
	UpdateAccount(ctx context.Context, account domain.Account) error

	// DeleteAccountCascade removes the account and every transaction touching it, applying
	// counterpartChanges to the other accounts of those transactions in the same unit of work.
	DeleteAccountCascade(ctx context.Context, accountID string, counterpartChanges domain.BalanceChanges, userID string, now time.Time) error
}

// BalanceWriter is the only path through which balances change.
type BalanceWriter interface {
	// ApplyBalanceChanges adds each delta to its account's balance, all or nothing.
	// If any account is missing it returns apperrors.ErrAccountNotFound and changes nothing.
	ApplyBalanceChanges(ctx context.Context, changes domain.BalanceChanges, userID string, now time.Time) error
}

// AccountRepositoryFacade combines all account-related repository interfaces
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
	BalanceWriter
}
