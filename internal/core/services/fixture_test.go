package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/core/services"
	"github.com/SscSPs/pfm_backend/internal/dto"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
	"github.com/SscSPs/pfm_backend/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var errInjected = errors.New("injected failure")

// flakyStore wraps the in-memory store and fails selected writes on demand.
type flakyStore struct {
	*memory.Store
	mu           sync.Mutex
	applyErr     error
	advanceFails int
}

func (f *flakyStore) ApplyBalanceChanges(ctx context.Context, changes domain.BalanceChanges, userID string, now time.Time) error {
	f.mu.Lock()
	err := f.applyErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.ApplyBalanceChanges(ctx, changes, userID, now)
}

func (f *flakyStore) AdvanceTemplate(ctx context.Context, templateID string, claimedUntil time.Time, next time.Time, isRecurring bool, now time.Time) error {
	f.mu.Lock()
	fail := f.advanceFails > 0
	if fail {
		f.advanceFails--
	}
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.AdvanceTemplate(ctx, templateID, claimedUntil, next, isRecurring, now)
}

// hookedEmitter runs afterEmit once an occurrence has been recorded, while the sweep still holds the claim.
type hookedEmitter struct {
	portssvc.OccurrenceEmitter
	afterEmit func(template domain.Transaction)
}

func (h *hookedEmitter) EmitOccurrence(ctx context.Context, template domain.Transaction, today time.Time, idempotencyKey string) (*domain.Transaction, error) {
	occurrence, err := h.OccurrenceEmitter.EmitOccurrence(ctx, template, today, idempotencyKey)
	if err == nil && h.afterEmit != nil {
		h.afterEmit(template)
	}
	return occurrence, err
}

// ledgerFixture wires every service against one store, one locker and a fixed clock.
type ledgerFixture struct {
	suite.Suite
	ctx          context.Context
	now          time.Time
	userID       string
	store        *flakyStore
	locker       *lock.KeyedMutex
	ledger       *services.LedgerService
	transactions *services.TransactionService
	accounts     portssvc.AccountSvcFacade
	recurrence   *services.RecurrenceService
	accountSeq   int
}

func (f *ledgerFixture) SetupTest() {
	f.ctx = context.Background()
	f.now = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	f.userID = "user-1"
	f.accountSeq = 0
	f.store = &flakyStore{Store: memory.NewStore()}
	f.locker = lock.NewKeyedMutex()
	clock := func() time.Time { return f.now }

	f.ledger = services.NewLedgerService(f.store, services.WithLedgerLocker(f.locker))
	f.ledger.Clock = clock
	f.transactions = services.NewTransactionService(f.store, f.store, f.ledger,
		services.WithTransactionLocker(f.locker),
		services.WithTransactionClock(clock))
	f.accounts = services.NewAccountService(f.store, f.store, f.ledger,
		services.WithAccountLocker(f.locker),
		services.WithAccountClock(clock))
	f.recurrence = services.NewRecurrenceService(f.store, f.transactions,
		services.WithSweepGuard(f.locker))
	f.recurrence.Clock = clock
}

func (f *ledgerFixture) today() time.Time {
	return domain.DateOnly(f.now)
}

func (f *ledgerFixture) createAccount(currency string, opening int64) *domain.Account {
	f.accountSeq++
	balance := decimal.NewFromInt(opening)
	acc, err := f.accounts.CreateAccount(f.ctx, dto.CreateAccountRequest{
		Name:           fmt.Sprintf("Account %d", f.accountSeq),
		Institution:    "Test Bank",
		AccountType:    domain.Checking,
		AccountNumber:  fmt.Sprintf("ACC-%04d", f.accountSeq),
		CurrencyCode:   currency,
		OpeningBalance: &balance,
	}, f.userID)
	f.Require().NoError(err)
	return acc
}

func (f *ledgerFixture) balanceOf(accountID string) decimal.Decimal {
	acc, err := f.store.FindAccountByID(f.ctx, accountID)
	f.Require().NoError(err)
	return acc.Balance
}

func (f *ledgerFixture) assertBalance(accountID string, want int64) {
	got := f.balanceOf(accountID)
	f.Truef(decimal.NewFromInt(want).Equal(got), "balance of %s: want %d, got %s", accountID, want, got)
}

func (f *ledgerFixture) assertBalanceString(accountID string, want string) {
	got := f.balanceOf(accountID)
	f.Truef(decimal.RequireFromString(want).Equal(got), "balance of %s: want %s, got %s", accountID, want, got)
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func amountOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}
