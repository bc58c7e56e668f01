// Package memory provides an in-memory implementation of the account and transaction repositories.
// It is safe for concurrent use. Data is lost on restart; use the PostgreSQL repositories for persistence.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
)

// Store keeps accounts and transactions in maps guarded by a single RWMutex, so every
// write observes a consistent snapshot of both.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	// idempotency key -> transaction id
	keys map[string]string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		keys:         make(map[string]string),
	}
}

var (
	_ portsrepo.AccountRepositoryFacade     = (*Store)(nil)
	_ portsrepo.TransactionRepositoryFacade = (*Store)(nil)
)

// NewRepositoryProvider wires a fresh Store behind both repository facades.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	store := NewStore()
	return portsrepo.RepositoryProvider{
		AccountRepo:     store,
		TransactionRepo: store,
	}
}

// --- accounts ---

func (s *Store) SaveAccount(ctx context.Context, account domain.Account) error {
	if account.AccountID == "" {
		return fmt.Errorf("%w: account ID is required", apperrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.AccountID]; exists {
		return fmt.Errorf("%w: account %s already exists", apperrors.ErrDuplicate, account.AccountID)
	}
	if account.AccountNumber != "" {
		for _, existing := range s.accounts {
			if existing.AccountNumber == account.AccountNumber {
				return fmt.Errorf("%w: account number already in use", apperrors.ErrDuplicate)
			}
		}
	}
	stored := cloneAccount(account)
	s.accounts[account.AccountID] = &stored
	return nil
}

func (s *Store) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	out := cloneAccount(*account)
	return &out, nil
}

func (s *Store) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Account, len(accountIDs))
	for _, id := range accountIDs {
		if account, exists := s.accounts[id]; exists {
			result[id] = cloneAccount(*account)
		}
	}
	return result, nil
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string, limit int, offset int) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []domain.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			owned = append(owned, cloneAccount(*account))
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].AccountID < owned[j].AccountID
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})
	if offset >= len(owned) {
		return []domain.Account{}, nil
	}
	owned = owned[offset:]
	if limit > 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.accounts[account.AccountID]
	if !exists {
		return apperrors.ErrNotFound
	}
	existing.Name = account.Name
	existing.Institution = account.Institution
	existing.IsActive = account.IsActive
	existing.Credit = cloneCredit(account.Credit)
	existing.LastUpdatedAt = account.LastUpdatedAt
	existing.LastUpdatedBy = account.LastUpdatedBy
	return nil
}

func (s *Store) ApplyBalanceChanges(ctx context.Context, changes domain.BalanceChanges, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(changes, userID, now)
}

// applyLocked checks every account before mutating any. Callers hold s.mu.
func (s *Store) applyLocked(changes domain.BalanceChanges, userID string, now time.Time) error {
	for _, id := range changes.AccountIDs() {
		if _, exists := s.accounts[id]; !exists {
			return fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, id)
		}
	}
	for id, delta := range changes {
		account := s.accounts[id]
		account.Balance = account.Balance.Add(delta)
		account.LastUpdatedAt = now
		account.LastUpdatedBy = userID
	}
	return nil
}

func (s *Store) DeleteAccountCascade(ctx context.Context, accountID string, counterpartChanges domain.BalanceChanges, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[accountID]; !exists {
		return fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountID)
	}
	if err := s.applyLocked(counterpartChanges.Without(accountID), userID, now); err != nil {
		return err
	}
	for id, txn := range s.transactions {
		if txn.Touches(accountID) {
			s.deleteTransactionLocked(id)
		}
	}
	delete(s.accounts, accountID)
	return nil
}

// --- transactions ---

func (s *Store) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	if txn.TransactionID == "" {
		return fmt.Errorf("%w: transaction ID is required", apperrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.TransactionID]; exists {
		return fmt.Errorf("%w: transaction %s already exists", apperrors.ErrDuplicate, txn.TransactionID)
	}
	if txn.IdempotencyKey != nil {
		if _, taken := s.keys[*txn.IdempotencyKey]; taken {
			return fmt.Errorf("%w: idempotency key %s already used", apperrors.ErrDuplicate, *txn.IdempotencyKey)
		}
		s.keys[*txn.IdempotencyKey] = txn.TransactionID
	}
	stored := cloneTransaction(txn)
	s.transactions[txn.TransactionID] = &stored
	return nil
}

func (s *Store) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, exists := s.transactions[transactionID]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	out := cloneTransaction(*txn)
	return &out, nil
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.keys[key]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	out := cloneTransaction(*s.transactions[id])
	return &out, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, txn := range s.transactions {
		if txn.UserID != userID || !matches(*txn, filter) {
			continue
		}
		result = append(result, cloneTransaction(*txn))
	}
	sort.Slice(result, func(i, j int) bool { return newerThan(result[i], result[j]) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, txn := range s.transactions {
		if txn.Touches(accountID) {
			result = append(result, cloneTransaction(*txn))
		}
	}
	sort.Slice(result, func(i, j int) bool { return newerThan(result[i], result[j]) })
	return result, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.transactions[txn.TransactionID]
	if !exists {
		return apperrors.ErrNotFound
	}
	// Identity and provenance are not editable. Dropping the lease makes an in-flight sweep advance conflict.
	updated := cloneTransaction(txn)
	updated.UserID = existing.UserID
	updated.TemplateID = existing.TemplateID
	updated.IdempotencyKey = existing.IdempotencyKey
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.Recurrence.ClaimedUntil = nil
	s.transactions[txn.TransactionID] = &updated
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[transactionID]; !exists {
		return apperrors.ErrNotFound
	}
	s.deleteTransactionLocked(transactionID)
	return nil
}

// deleteTransactionLocked removes the transaction and detaches occurrences emitted from it. Callers hold s.mu.
func (s *Store) deleteTransactionLocked(transactionID string) {
	txn := s.transactions[transactionID]
	if txn.IdempotencyKey != nil {
		delete(s.keys, *txn.IdempotencyKey)
	}
	delete(s.transactions, transactionID)
	for _, other := range s.transactions {
		if other.TemplateID != nil && *other.TemplateID == transactionID {
			other.TemplateID = nil
		}
	}
}

// --- recurring templates ---

func (s *Store) ClaimDueTemplates(ctx context.Context, today time.Time, now time.Time, leaseUntil time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.Transaction
	for _, txn := range s.transactions {
		if !txn.Recurrence.IsDue(today) {
			continue
		}
		if claimed := txn.Recurrence.ClaimedUntil; claimed != nil && claimed.After(now) {
			continue
		}
		due = append(due, txn)
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := *due[i].Recurrence.NextRecurrence, *due[j].Recurrence.NextRecurrence
		if a.Equal(b) {
			return due[i].TransactionID < due[j].TransactionID
		}
		return a.Before(b)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]domain.Transaction, 0, len(due))
	for _, txn := range due {
		lease := leaseUntil
		txn.Recurrence.ClaimedUntil = &lease
		claimed = append(claimed, cloneTransaction(*txn))
	}
	return claimed, nil
}

func (s *Store) AdvanceTemplate(ctx context.Context, templateID string, claimedUntil time.Time, next time.Time, isRecurring bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.transactions[templateID]
	if !exists {
		return apperrors.ErrNotFound
	}
	if !txn.Recurrence.IsRecurring || !holdsLease(txn, claimedUntil) {
		return apperrors.ErrConflict
	}
	txn.Recurrence.NextRecurrence = &next
	txn.Recurrence.IsRecurring = isRecurring
	txn.LastUpdatedAt = now
	return nil
}

func (s *Store) ReleaseTemplate(ctx context.Context, templateID string, claimedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.transactions[templateID]
	if !exists {
		return apperrors.ErrNotFound
	}
	if holdsLease(txn, claimedUntil) {
		txn.Recurrence.ClaimedUntil = nil
	}
	return nil
}

func (s *Store) StopTemplate(ctx context.Context, templateID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.transactions[templateID]
	if !exists {
		return apperrors.ErrNotFound
	}
	txn.Recurrence.IsRecurring = false
	txn.Recurrence.ClaimedUntil = nil
	txn.LastUpdatedAt = now
	return nil
}

func holdsLease(txn *domain.Transaction, claimedUntil time.Time) bool {
	return txn.Recurrence.ClaimedUntil != nil && txn.Recurrence.ClaimedUntil.Equal(claimedUntil)
}

func matches(txn domain.Transaction, filter domain.TransactionFilter) bool {
	if filter.AccountID != "" && !txn.Touches(filter.AccountID) {
		return false
	}
	if filter.TransactionType != "" && txn.TransactionType != filter.TransactionType {
		return false
	}
	if filter.From != nil && txn.Date.Before(domain.DateOnly(*filter.From)) {
		return false
	}
	if filter.To != nil && txn.Date.After(domain.DateOnly(*filter.To)) {
		return false
	}
	if filter.RecurringOnly && !txn.Recurrence.IsRecurring {
		return false
	}
	if filter.AfterDate != nil && filter.AfterCreatedAt != nil {
		cursor := domain.Transaction{TransactionID: filter.AfterID, Date: *filter.AfterDate}
		cursor.CreatedAt = *filter.AfterCreatedAt
		if !newerThan(cursor, txn) {
			return false
		}
	}
	return true
}

// newerThan orders by date, then creation time, then id, all descending.
func newerThan(a, b domain.Transaction) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.TransactionID > b.TransactionID
}
