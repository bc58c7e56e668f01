package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/dto"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
	"github.com/SscSPs/pfm_backend/internal/utils/accounting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxCascadeAttempts bounds how often DeleteAccount retries when new counterpart accounts
// appear between planning and locking.
const maxCascadeAttempts = 3

// accountService implements the AccountSvcFacade interface
type accountService struct {
	BaseService
	accountRepo portsrepo.AccountRepositoryFacade
	txnRepo     portsrepo.TransactionReader
	ledger      portssvc.LedgerSvc
	locker      lock.AccountLocker
}

// AccountServiceOption is a functional option for configuring the account service
type AccountServiceOption func(*accountService)

// WithAccountLocker sets the account locker shared with the ledger.
func WithAccountLocker(locker lock.AccountLocker) AccountServiceOption {
	return func(s *accountService) {
		s.locker = locker
	}
}

// WithAccountClock overrides the service clock.
func WithAccountClock(clock func() time.Time) AccountServiceOption {
	return func(s *accountService) {
		s.Clock = clock
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(repo portsrepo.AccountRepositoryFacade, txnRepo portsrepo.TransactionReader, ledger portssvc.LedgerSvc, options ...AccountServiceOption) portssvc.AccountSvcFacade {
	svc := &accountService{
		accountRepo: repo,
		txnRepo:     txnRepo,
		ledger:      ledger,
		locker:      lock.NewKeyedMutex(),
	}

	// Apply all options
	for _, option := range options {
		option(svc)
	}

	return svc
}

func (s *accountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, userID string) (*domain.Account, error) {
	if !req.AccountType.IsValid() {
		return nil, fmt.Errorf("%w: unknown account type %q", apperrors.ErrValidation, req.AccountType)
	}

	now := s.Now()
	opening := decimal.Zero
	if req.OpeningBalance != nil {
		opening = *req.OpeningBalance
	}

	account := domain.Account{
		AccountID:      uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		Institution:    req.Institution,
		AccountType:    req.AccountType,
		AccountNumber:  req.AccountNumber,
		OpeningBalance: opening,
		Balance:        opening,
		CurrencyCode:   req.CurrencyCode,
		IsActive:       true,
		Credit:         req.Credit.ToCreditDetails(),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		s.LogError(ctx, err, "Failed to save account",
			slog.String("account_id", account.AccountID))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.LogInfo(ctx, "Account created successfully",
		slog.String("account_id", account.AccountID),
		slog.String("account_type", string(account.AccountType)))
	return &account, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, accountID string, userID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(userID) {
		return nil, apperrors.ErrNotFound
	}
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context, userID string, limit int, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.accountRepo.ListAccountsByUser(ctx, userID, limit, offset)
	if err != nil {
		s.LogError(ctx, err, "Failed to list accounts", slog.String("user_id", userID))
		return nil, err
	}
	return accounts, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest, userID string) (*domain.Account, error) {
	account, err := s.GetAccountByID(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}

	updated := false
	if req.Name != nil && *req.Name != account.Name {
		account.Name = *req.Name
		updated = true
	}
	if req.Institution != nil && *req.Institution != account.Institution {
		account.Institution = *req.Institution
		updated = true
	}
	if req.IsActive != nil && *req.IsActive != account.IsActive {
		account.IsActive = *req.IsActive
		updated = true
	}
	if req.Credit != nil {
		account.Credit = req.Credit.ToCreditDetails()
		updated = true
	}
	if !updated {
		return account, nil
	}

	account.LastUpdatedAt = s.Now()
	account.LastUpdatedBy = userID
	if err := s.accountRepo.UpdateAccount(ctx, *account); err != nil {
		s.LogError(ctx, err, "Failed to update account", slog.String("account_id", accountID))
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// DeleteAccount removes the account with every transaction touching it. Transfers to or from
// other accounts are reversed on those accounts so their balances stay consistent.
func (s *accountService) DeleteAccount(ctx context.Context, accountID string, userID string) error {
	if _, err := s.GetAccountByID(ctx, accountID, userID); err != nil {
		return err
	}

	for attempt := 1; attempt <= maxCascadeAttempts; attempt++ {
		planned, err := s.cascadeChanges(ctx, accountID)
		if err != nil {
			return err
		}
		lockIDs := append(planned.AccountIDs(), accountID)

		retry := false
		err = s.locker.WithAccountLocks(ctx, lockIDs, func(ctx context.Context) error {
			changes, err := s.cascadeChanges(ctx, accountID)
			if err != nil {
				return err
			}
			for _, id := range changes.AccountIDs() {
				if !lock.Holds(ctx, id) {
					retry = true
					return nil
				}
			}
			return s.accountRepo.DeleteAccountCascade(ctx, accountID, changes, userID, s.Now())
		})
		if err != nil {
			s.LogError(ctx, err, "Failed to delete account", slog.String("account_id", accountID))
			return err
		}
		if !retry {
			s.LogInfo(ctx, "Account deleted", slog.String("account_id", accountID))
			return nil
		}
	}
	return fmt.Errorf("%w: account %s kept changing during delete", apperrors.ErrConflict, accountID)
}

// cascadeChanges sums the reversal of every transaction touching accountID, restricted to the other accounts.
func (s *accountService) cascadeChanges(ctx context.Context, accountID string) (domain.BalanceChanges, error) {
	txns, err := s.txnRepo.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	total := domain.BalanceChanges{}
	for _, txn := range txns {
		effects, err := accounting.CalculateEffects(txn)
		if err != nil {
			return nil, err
		}
		total = total.Merge(effects.Without(accountID).Inverse())
	}
	return total, nil
}

// ReconcileAccount recomputes the balance from the opening balance and the transaction log.
// With fix set, a drift is written back through the ledger.
func (s *accountService) ReconcileAccount(ctx context.Context, accountID string, userID string, fix bool) (*domain.ReconciliationReport, error) {
	var report *domain.ReconciliationReport
	err := s.locker.WithAccountLocks(ctx, []string{accountID}, func(ctx context.Context) error {
		account, err := s.GetAccountByID(ctx, accountID, userID)
		if err != nil {
			return err
		}
		txns, err := s.txnRepo.ListTransactionsByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		expected, err := accounting.ExpectedBalance(*account, txns)
		if err != nil {
			return err
		}
		report = &domain.ReconciliationReport{
			AccountID:        accountID,
			StoredBalance:    account.Balance,
			ExpectedBalance:  expected,
			Drift:            expected.Sub(account.Balance),
			TransactionCount: len(txns),
		}
		if report.Drift.IsZero() || !fix {
			return nil
		}
		if err := s.ledger.Correct(ctx, domain.BalanceChanges{accountID: report.Drift}, userID); err != nil {
			return err
		}
		report.Corrected = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Drift.IsZero() {
		s.LogWarn(ctx, "Account balance drift detected",
			slog.String("account_id", accountID),
			slog.String("stored", report.StoredBalance.String()),
			slog.String("expected", report.ExpectedBalance.String()),
			slog.Bool("corrected", report.Corrected))
	}
	return report, nil
}
