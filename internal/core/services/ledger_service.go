package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
	"github.com/SscSPs/pfm_backend/internal/utils/accounting"
)

// LedgerService keeps account balances in step with the transaction log.
// Every balance write happens under the locks of all touched accounts.
type LedgerService struct {
	BaseService
	balances portsrepo.BalanceWriter
	locker   lock.AccountLocker
}

// LedgerOption is a functional option for configuring the ledger service
type LedgerOption func(*LedgerService)

// WithLedgerLocker replaces the default in-process locker.
func WithLedgerLocker(locker lock.AccountLocker) LedgerOption {
	return func(s *LedgerService) {
		s.locker = locker
	}
}

// NewLedgerService creates a ledger service over the given balance writer.
func NewLedgerService(balances portsrepo.BalanceWriter, options ...LedgerOption) *LedgerService {
	svc := &LedgerService{
		balances: balances,
		locker:   lock.NewKeyedMutex(),
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.LedgerSvc = (*LedgerService)(nil)

// Apply adds the transaction's effect to its account balances.
func (s *LedgerService) Apply(ctx context.Context, txn domain.Transaction) error {
	changes, err := accounting.CalculateEffects(txn)
	if err != nil {
		return err
	}
	return s.write(ctx, changes, txn.UserID, "apply", txn.TransactionID)
}

// Reverse subtracts the transaction's effect from its account balances.
func (s *LedgerService) Reverse(ctx context.Context, txn domain.Transaction) error {
	changes, err := accounting.CalculateEffects(txn)
	if err != nil {
		return err
	}
	return s.write(ctx, changes.Inverse(), txn.UserID, "reverse", txn.TransactionID)
}

// Reapply swaps the effect of before for the effect of after.
func (s *LedgerService) Reapply(ctx context.Context, before domain.Transaction, after domain.Transaction) error {
	oldChanges, err := accounting.CalculateEffects(before)
	if err != nil {
		return err
	}
	newChanges, err := accounting.CalculateEffects(after)
	if err != nil {
		return err
	}
	return s.write(ctx, oldChanges.Inverse().Merge(newChanges), after.UserID, "reapply", after.TransactionID)
}

// Correct applies arbitrary changes, used by reconciliation.
func (s *LedgerService) Correct(ctx context.Context, changes domain.BalanceChanges, userID string) error {
	return s.write(ctx, changes, userID, "correct", "")
}

func (s *LedgerService) write(ctx context.Context, changes domain.BalanceChanges, userID, op, transactionID string) error {
	if len(changes) == 0 {
		return nil
	}
	ids := changes.AccountIDs()
	err := s.locker.WithAccountLocks(ctx, ids, func(ctx context.Context) error {
		return s.balances.ApplyBalanceChanges(ctx, changes, userID, s.Now())
	})
	if err != nil {
		s.LogError(ctx, err, "Ledger balance write failed",
			slog.String("op", op),
			slog.String("transaction_id", transactionID),
			slog.Any("account_ids", ids))
		return fmt.Errorf("ledger %s: %w", op, err)
	}
	s.LogDebug(ctx, "Ledger balance write applied",
		slog.String("op", op),
		slog.String("transaction_id", transactionID),
		slog.Any("account_ids", ids))
	return nil
}
