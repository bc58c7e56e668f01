package pgsql

import (
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery(t *testing.T) {
	t.Run("user only", func(t *testing.T) {
		query, args := buildListQuery("user-1", domain.TransactionFilter{})

		assert.Contains(t, query, "WHERE user_id = $1 ORDER BY transaction_date DESC, created_at DESC, transaction_id DESC")
		assert.NotContains(t, query, "LIMIT")
		assert.Equal(t, []any{"user-1"}, args)
	})

	t.Run("all filters and cursor", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
		to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		afterDate := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
		afterCreated := time.Date(2024, 1, 20, 8, 30, 0, 0, time.UTC)

		query, args := buildListQuery("user-1", domain.TransactionFilter{
			AccountID:       "acc-1",
			TransactionType: domain.Expense,
			From:            &from,
			To:              &to,
			RecurringOnly:   true,
			AfterDate:       &afterDate,
			AfterCreatedAt:  &afterCreated,
			AfterID:         "txn-9",
			Limit:           51,
		})

		assert.Contains(t, query, "(account_id = $2 OR to_account_id = $2)")
		assert.Contains(t, query, "transaction_type = $3")
		assert.Contains(t, query, "transaction_date >= $4")
		assert.Contains(t, query, "transaction_date <= $5")
		assert.Contains(t, query, "AND is_recurring")
		assert.Contains(t, query, "(transaction_date, created_at, transaction_id) < ($6, $7, $8)")
		assert.Contains(t, query, "LIMIT $9")
		assert.Len(t, args, 9)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), args[3], "from is truncated to a date")
		assert.Equal(t, 51, args[8])
	})
}
