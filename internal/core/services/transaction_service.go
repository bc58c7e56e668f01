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
	"github.com/SscSPs/pfm_backend/internal/utils/pagination"
	"github.com/google/uuid"
)

// TransactionService records, edits and removes transactions, keeping balances in step through the ledger.
//
// Rollback policy: the record and its balance effect are written under the account locks; when the
// balance write fails the record write is compensated (deleted, restored or reverted) before the
// error is returned, so the request path never leaves a record without its effect.
type TransactionService struct {
	BaseService
	accountRepo portsrepo.AccountReader
	txnRepo     portsrepo.TransactionRepositoryFacade
	ledger      portssvc.LedgerSvc
	locker      lock.AccountLocker
}

// TransactionServiceOption is a functional option for configuring the transaction service
type TransactionServiceOption func(*TransactionService)

// WithTransactionLocker sets the account locker shared with the ledger.
func WithTransactionLocker(locker lock.AccountLocker) TransactionServiceOption {
	return func(s *TransactionService) {
		s.locker = locker
	}
}

// WithTransactionClock overrides the service clock.
func WithTransactionClock(clock func() time.Time) TransactionServiceOption {
	return func(s *TransactionService) {
		s.Clock = clock
	}
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(accountRepo portsrepo.AccountReader, txnRepo portsrepo.TransactionRepositoryFacade, ledger portssvc.LedgerSvc, options ...TransactionServiceOption) *TransactionService {
	svc := &TransactionService{
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		ledger:      ledger,
		locker:      lock.NewKeyedMutex(),
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var (
	_ portssvc.TransactionSvcFacade = (*TransactionService)(nil)
	_ portssvc.OccurrenceEmitter    = (*TransactionService)(nil)
)

// CreateTransaction validates and records a new transaction, then applies it to the balances.
func (s *TransactionService) CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, userID string) (*domain.Transaction, error) {
	now := s.Now()
	txnDate := domain.DateOnly(now)
	if req.Date != nil {
		txnDate = domain.DateOnly(*req.Date)
	}

	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		UserID:          userID,
		AccountID:       req.AccountID,
		ToAccountID:     req.ToAccountID,
		TransactionType: req.TransactionType,
		CurrencyCode:    req.CurrencyCode,
		Category:        req.Category,
		Date:            txnDate,
		Description:     req.Description,
		Tags:            req.Tags,
		Attachments:     req.Attachments,
		Location:        req.Location,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if req.Amount != nil {
		txn.Amount = *req.Amount
	}
	if err := applyRecurrenceRequest(&txn, req.Recurrence, false); err != nil {
		return nil, err
	}
	if err := txn.Validate(); err != nil {
		s.LogWarn(ctx, "Transaction failed validation", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.record(ctx, &txn); err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Transaction created",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("type", string(txn.TransactionType)),
		slog.String("amount", txn.Amount.String()))
	return &txn, nil
}

// EmitOccurrence records the occurrence of template scheduled for today and applies it.
func (s *TransactionService) EmitOccurrence(ctx context.Context, template domain.Transaction, today time.Time, idempotencyKey string) (*domain.Transaction, error) {
	occurrence := template.CloneForOccurrence(uuid.NewString(), today, idempotencyKey, s.Now())
	if err := occurrence.Validate(); err != nil {
		return nil, err
	}
	if err := s.record(ctx, &occurrence); err != nil {
		return nil, err
	}
	return &occurrence, nil
}

// record persists txn and applies it while holding its account locks.
func (s *TransactionService) record(ctx context.Context, txn *domain.Transaction) error {
	return s.locker.WithAccountLocks(ctx, txn.AccountIDs(), func(ctx context.Context) error {
		if err := s.resolveAccounts(ctx, txn); err != nil {
			return err
		}
		if err := s.txnRepo.SaveTransaction(ctx, *txn); err != nil {
			s.LogError(ctx, err, "Failed to persist transaction", slog.String("transaction_id", txn.TransactionID))
			return err
		}
		if err := s.ledger.Apply(ctx, *txn); err != nil {
			if delErr := s.txnRepo.DeleteTransaction(ctx, txn.TransactionID); delErr != nil {
				s.LogError(ctx, delErr, "Failed to roll back transaction after ledger failure; manual review required",
					slog.String("transaction_id", txn.TransactionID))
			}
			return err
		}
		return nil
	})
}

// resolveAccounts checks ownership, activity and currency of the accounts txn references.
// An empty currency is filled from the source account.
func (s *TransactionService) resolveAccounts(ctx context.Context, txn *domain.Transaction) error {
	ids := txn.AccountIDs()
	accounts, err := s.accountRepo.FindAccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		acc, ok := accounts[id]
		if !ok || !acc.OwnedBy(txn.UserID) {
			return fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, id)
		}
		if !acc.IsActive {
			return fmt.Errorf("%w: account %s is inactive", apperrors.ErrValidation, id)
		}
	}
	source := accounts[txn.AccountID]
	if txn.CurrencyCode == "" {
		txn.CurrencyCode = source.CurrencyCode
	}
	for _, id := range ids {
		if accounts[id].CurrencyCode != txn.CurrencyCode {
			return fmt.Errorf("%w: currency %s does not match account %s (%s)", apperrors.ErrValidation, txn.CurrencyCode, id, accounts[id].CurrencyCode)
		}
	}
	return nil
}

// GetTransaction returns a transaction owned by userID.
func (s *TransactionService) GetTransaction(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error) {
	txn, err := s.txnRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return txn, nil
}

// ListTransactions returns a page of the user's transactions and the token for the next page.
func (s *TransactionService) ListTransactions(ctx context.Context, userID string, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	filter := domain.TransactionFilter{
		AccountID:       params.AccountID,
		TransactionType: domain.TransactionType(params.TransactionType),
		From:            params.From,
		To:              params.To,
		Limit:           limit + 1,
	}
	if params.NextToken != "" {
		afterDate, afterCreated, afterID, err := pagination.DecodeTransactionToken(params.NextToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		filter.AfterDate, filter.AfterCreatedAt, filter.AfterID = &afterDate, &afterCreated, afterID
	}

	txns, err := s.txnRepo.ListTransactions(ctx, userID, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions", slog.String("user_id", userID))
		return nil, err
	}

	resp := &dto.ListTransactionsResponse{}
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		token := pagination.EncodeTransactionToken(last.Date, last.CreatedAt, last.TransactionID)
		resp.NextToken = &token
	}
	resp.Transactions = dto.ToListTransactionResponse(txns)
	return resp, nil
}

// ListRecurringTemplates returns the user's active recurring templates.
func (s *TransactionService) ListRecurringTemplates(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.txnRepo.ListTransactions(ctx, userID, domain.TransactionFilter{RecurringOnly: true})
}

// UpdateTransaction edits a transaction and moves its balance effect accordingly.
func (s *TransactionService) UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, userID string) (*domain.Transaction, error) {
	before, err := s.GetTransaction(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}

	after := *before
	if req.AccountID != nil {
		after.AccountID = *req.AccountID
	}
	if req.TransactionType != nil {
		after.TransactionType = *req.TransactionType
	}
	if req.ToAccountID != nil {
		to := *req.ToAccountID
		after.ToAccountID = &to
	}
	if after.TransactionType != domain.Transfer {
		after.ToAccountID = nil
	}
	if req.Amount != nil {
		after.Amount = *req.Amount
	}
	if req.Category != nil {
		after.Category = *req.Category
	}
	if req.Date != nil {
		after.Date = domain.DateOnly(*req.Date)
	}
	if req.Description != nil {
		after.Description = *req.Description
	}
	if req.Tags != nil {
		after.Tags = req.Tags
	}
	if err := applyRecurrenceRequest(&after, req.Recurrence, true); err != nil {
		return nil, err
	}
	after.LastUpdatedAt = s.Now()
	after.LastUpdatedBy = userID
	if err := after.Validate(); err != nil {
		return nil, err
	}

	ids := append(before.AccountIDs(), after.AccountIDs()...)
	err = s.locker.WithAccountLocks(ctx, ids, func(ctx context.Context) error {
		if err := s.resolveAccounts(ctx, &after); err != nil {
			return err
		}
		if err := s.txnRepo.UpdateTransaction(ctx, after); err != nil {
			s.LogError(ctx, err, "Failed to persist transaction update", slog.String("transaction_id", transactionID))
			return err
		}
		if err := s.ledger.Reapply(ctx, *before, after); err != nil {
			if restoreErr := s.txnRepo.UpdateTransaction(ctx, *before); restoreErr != nil {
				s.LogError(ctx, restoreErr, "Failed to restore transaction after ledger failure; manual review required",
					slog.String("transaction_id", transactionID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Transaction updated", slog.String("transaction_id", transactionID))
	return &after, nil
}

// DeleteTransaction removes a transaction and reverses its balance effect.
func (s *TransactionService) DeleteTransaction(ctx context.Context, transactionID string, userID string) error {
	txn, err := s.GetTransaction(ctx, transactionID, userID)
	if err != nil {
		return err
	}

	err = s.locker.WithAccountLocks(ctx, txn.AccountIDs(), func(ctx context.Context) error {
		if err := s.txnRepo.DeleteTransaction(ctx, transactionID); err != nil {
			s.LogError(ctx, err, "Failed to delete transaction", slog.String("transaction_id", transactionID))
			return err
		}
		if err := s.ledger.Reverse(ctx, *txn); err != nil {
			if restoreErr := s.txnRepo.SaveTransaction(ctx, *txn); restoreErr != nil {
				s.LogError(ctx, restoreErr, "Failed to restore transaction after ledger failure; manual review required",
					slog.String("transaction_id", transactionID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.LogInfo(ctx, "Transaction deleted", slog.String("transaction_id", transactionID))
	return nil
}

// StopRecurrence retires a recurring template. Already emitted occurrences are kept.
func (s *TransactionService) StopRecurrence(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error) {
	txn, err := s.GetTransaction(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}
	if !txn.Recurrence.IsRecurring {
		return nil, fmt.Errorf("%w: transaction %s is not recurring", apperrors.ErrValidation, transactionID)
	}
	if err := s.txnRepo.StopTemplate(ctx, transactionID, s.Now()); err != nil {
		return nil, err
	}
	txn.Recurrence.IsRecurring = false
	txn.Recurrence.ClaimedUntil = nil
	return txn, nil
}

// applyRecurrenceRequest copies a requested schedule onto txn. The first occurrence is the
// transaction itself, so the cursor starts one interval after its date.
func applyRecurrenceRequest(txn *domain.Transaction, req *dto.RecurrenceRequest, keepCursor bool) error {
	if req == nil {
		return nil
	}
	if !req.IsRecurring {
		txn.Recurrence = domain.Recurrence{}
		return nil
	}
	var endDate *time.Time
	if req.EndDate != nil {
		d := domain.DateOnly(*req.EndDate)
		if d.Before(domain.DateOnly(txn.Date)) {
			return fmt.Errorf("%w: end date is before the transaction date", apperrors.ErrValidation)
		}
		endDate = &d
	}
	unchanged := keepCursor && txn.Recurrence.IsRecurring && txn.Recurrence.Interval == req.Interval && txn.Recurrence.NextRecurrence != nil
	txn.Recurrence.IsRecurring = true
	txn.Recurrence.Interval = req.Interval
	txn.Recurrence.EndDate = endDate
	if !unchanged {
		next, err := domain.Advance(txn.Date, req.Interval)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		txn.Recurrence.NextRecurrence = &next
	}
	// A schedule whose next occurrence already falls after the end date has nothing left to emit.
	if endDate != nil && domain.DateOnly(*txn.Recurrence.NextRecurrence).After(*endDate) {
		txn.Recurrence.IsRecurring = false
	}
	return nil
}
