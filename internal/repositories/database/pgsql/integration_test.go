package pgsql

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// PgsqlIntegrationSuite runs against a real database when PFM_TEST_PGSQL_URL is set.
// The schema is migrated from the repository's migrations directory.
type PgsqlIntegrationSuite struct {
	suite.Suite
	ctx      context.Context
	pool     *pgxpool.Pool
	accounts *PgxAccountRepository
	txns     *PgxTransactionRepository
	userID   string
	now      time.Time
}

func (s *PgsqlIntegrationSuite) SetupSuite() {
	url := os.Getenv("PFM_TEST_PGSQL_URL")
	if url == "" {
		s.T().Skip("PFM_TEST_PGSQL_URL not set")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s.Require().NoError(database.RunMigrations(url, "../../../../migrations", logger))

	s.ctx = context.Background()
	pool, err := database.NewPgxPool(s.ctx, url, logger)
	s.Require().NoError(err)
	s.pool = pool
	s.accounts = newPgxAccountRepository(pool)
	s.txns = newPgxTransactionRepository(pool)
}

func (s *PgsqlIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PgsqlIntegrationSuite) SetupTest() {
	s.userID = "it-" + uuid.NewString()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PgsqlIntegrationSuite) newAccount(balance int64) domain.Account {
	acc := domain.Account{
		AccountID:      uuid.NewString(),
		UserID:         s.userID,
		Name:           "Checking",
		AccountType:    domain.Checking,
		AccountNumber:  uuid.NewString(),
		OpeningBalance: decimal.NewFromInt(balance),
		Balance:        decimal.NewFromInt(balance),
		CurrencyCode:   "USD",
		IsActive:       true,
		AuditFields:    domain.AuditFields{CreatedAt: s.now, CreatedBy: s.userID, LastUpdatedAt: s.now, LastUpdatedBy: s.userID},
	}
	s.Require().NoError(s.accounts.SaveAccount(s.ctx, acc))
	return acc
}

func (s *PgsqlIntegrationSuite) balance(id string) decimal.Decimal {
	acc, err := s.accounts.FindAccountByID(s.ctx, id)
	s.Require().NoError(err)
	return acc.Balance
}

func (s *PgsqlIntegrationSuite) TestApplyBalanceChangesIsAtomic() {
	a := s.newAccount(1000)
	b := s.newAccount(500)

	s.Require().NoError(s.accounts.ApplyBalanceChanges(s.ctx, domain.BalanceChanges{
		a.AccountID: decimal.NewFromInt(-200),
		b.AccountID: decimal.NewFromInt(200),
	}, s.userID, s.now))
	s.True(decimal.NewFromInt(800).Equal(s.balance(a.AccountID)))
	s.True(decimal.NewFromInt(700).Equal(s.balance(b.AccountID)))

	err := s.accounts.ApplyBalanceChanges(s.ctx, domain.BalanceChanges{
		a.AccountID:      decimal.NewFromInt(-200),
		uuid.NewString(): decimal.NewFromInt(200),
	}, s.userID, s.now)
	s.ErrorIs(err, apperrors.ErrAccountNotFound)
	s.True(decimal.NewFromInt(800).Equal(s.balance(a.AccountID)))
}

func (s *PgsqlIntegrationSuite) TestDuplicateAccountNumber() {
	a := s.newAccount(0)
	dup := a
	dup.AccountID = uuid.NewString()
	s.ErrorIs(s.accounts.SaveAccount(s.ctx, dup), apperrors.ErrDuplicate)
}

func (s *PgsqlIntegrationSuite) TestTemplateClaimAndIdempotency() {
	a := s.newAccount(0)
	today := domain.DateOnly(s.now)
	next := today.AddDate(0, 0, -1)
	tmpl := domain.Transaction{
		TransactionID:   uuid.NewString(),
		UserID:          s.userID,
		AccountID:       a.AccountID,
		TransactionType: domain.Expense,
		Amount:          decimal.NewFromInt(25),
		CurrencyCode:    "USD",
		Date:            next.AddDate(0, -1, 0),
		Tags:            []string{"subscription"},
		Recurrence:      domain.Recurrence{IsRecurring: true, Interval: domain.Monthly, NextRecurrence: &next},
		AuditFields:     domain.AuditFields{CreatedAt: s.now, CreatedBy: s.userID, LastUpdatedAt: s.now, LastUpdatedBy: s.userID},
	}
	s.Require().NoError(s.txns.SaveTransaction(s.ctx, tmpl))

	claimed, err := s.txns.ClaimDueTemplates(s.ctx, today, s.now, s.now.Add(time.Minute), 1000)
	s.Require().NoError(err)
	found := false
	var lease time.Time
	for _, c := range claimed {
		if c.TransactionID == tmpl.TransactionID {
			found = true
			s.Require().NotNil(c.Recurrence.ClaimedUntil)
			lease = *c.Recurrence.ClaimedUntil
			s.Equal([]string{"subscription"}, c.Tags)
			s.Equal(domain.Monthly, c.Recurrence.Interval)
		}
	}
	s.True(found)

	again, err := s.txns.ClaimDueTemplates(s.ctx, today, s.now, s.now.Add(time.Minute), 1000)
	s.Require().NoError(err)
	for _, c := range again {
		s.NotEqual(tmpl.TransactionID, c.TransactionID)
	}

	key := domain.IdempotencyKeyFor(tmpl.TransactionID, next)
	occ := tmpl.CloneForOccurrence(uuid.NewString(), today, key, s.now)
	s.Require().NoError(s.txns.SaveTransaction(s.ctx, occ))
	dup := tmpl.CloneForOccurrence(uuid.NewString(), today, key, s.now)
	s.ErrorIs(s.txns.SaveTransaction(s.ctx, dup), apperrors.ErrDuplicate)

	got, err := s.txns.FindTransactionByIdempotencyKey(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(occ.TransactionID, got.TransactionID)

	s.ErrorIs(s.txns.AdvanceTemplate(s.ctx, tmpl.TransactionID, lease.Add(time.Second), next.AddDate(0, 1, 0), true, s.now), apperrors.ErrConflict)
	s.Require().NoError(s.txns.AdvanceTemplate(s.ctx, tmpl.TransactionID, lease, next.AddDate(0, 1, 0), true, s.now))
	stored, err := s.txns.FindTransactionByID(s.ctx, tmpl.TransactionID)
	s.Require().NoError(err)
	s.NotNil(stored.Recurrence.ClaimedUntil)

	s.Require().NoError(s.txns.ReleaseTemplate(s.ctx, tmpl.TransactionID, lease))
	s.Require().NoError(s.txns.StopTemplate(s.ctx, tmpl.TransactionID, s.now))
	stored, err = s.txns.FindTransactionByID(s.ctx, tmpl.TransactionID)
	s.Require().NoError(err)
	s.Nil(stored.Recurrence.ClaimedUntil)
	s.False(stored.Recurrence.IsRecurring)
	s.ErrorIs(s.txns.AdvanceTemplate(s.ctx, tmpl.TransactionID, lease, next, true, s.now), apperrors.ErrConflict)
	s.ErrorIs(s.txns.AdvanceTemplate(s.ctx, uuid.NewString(), lease, next, true, s.now), apperrors.ErrNotFound)

	s.Require().NoError(s.accounts.DeleteAccountCascade(s.ctx, a.AccountID, domain.BalanceChanges{}, s.userID, s.now))
	_, err = s.txns.FindTransactionByID(s.ctx, occ.TransactionID)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func TestPgsqlIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PgsqlIntegrationSuite))
}
