package pgsql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	"github.com/SscSPs/pfm_backend/internal/models"
	"github.com/SscSPs/pfm_backend/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `transaction_id, user_id, account_id, to_account_id, transaction_type, amount, currency_code,
	category, transaction_date, description, tags,
	is_recurring, recurrence_interval, recurrence_end_date, next_recurrence, claimed_until,
	template_id, idempotency_key, attachments, location,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxTransactionRepository struct {
	BaseRepository
}

func newPgxTransactionRepository(pool *pgxpool.Pool) *PgxTransactionRepository {
	return &PgxTransactionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TransactionRepositoryFacade = (*PgxTransactionRepository)(nil)

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var m models.Transaction
	err := row.Scan(
		&m.TransactionID,
		&m.UserID,
		&m.AccountID,
		&m.ToAccountID,
		&m.TransactionType,
		&m.Amount,
		&m.CurrencyCode,
		&m.Category,
		&m.TransactionDate,
		&m.Description,
		&m.Tags,
		&m.IsRecurring,
		&m.RecurrenceInterval,
		&m.RecurrenceEndDate,
		&m.NextRecurrence,
		&m.ClaimedUntil,
		&m.TemplateID,
		&m.IdempotencyKey,
		&m.Attachments,
		&m.Location,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	txns := []domain.Transaction{}
	for rows.Next() {
		m, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapErr(err, "failed to scan transaction row")
		}
		txns = append(txns, mapping.ToDomainTransaction(m))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "error iterating transaction rows")
	}
	return txns, nil
}

// SaveTransaction inserts a transaction. Unique violations (id or idempotency key) map to ErrDuplicate.
func (r *PgxTransactionRepository) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	m := mapping.ToModelTransaction(txn)

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.TransactionID,
		m.UserID,
		m.AccountID,
		m.ToAccountID,
		m.TransactionType,
		m.Amount,
		m.CurrencyCode,
		m.Category,
		m.TransactionDate,
		m.Description,
		m.Tags,
		m.IsRecurring,
		m.RecurrenceInterval,
		m.RecurrenceEndDate,
		m.NextRecurrence,
		m.ClaimedUntil,
		m.TemplateID,
		m.IdempotencyKey,
		m.Attachments,
		m.Location,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return wrapErr(err, "failed to save transaction %s", m.TransactionID)
	}
	return nil
}

func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	m, err := scanTransaction(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, wrapErr(err, "failed to find transaction %s", transactionID)
	}
	txn := mapping.ToDomainTransaction(m)
	return &txn, nil
}

func (r *PgxTransactionRepository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1;`
	m, err := scanTransaction(r.Pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, wrapErr(err, "failed to find transaction by idempotency key %s", key)
	}
	txn := mapping.ToDomainTransaction(m)
	return &txn, nil
}

// ListTransactions pages through the user's transactions with a keyset cursor.
func (r *PgxTransactionRepository) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query, args := buildListQuery(userID, filter)
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list transactions for user %s", userID)
	}
	return collectTransactions(rows)
}

// buildListQuery renders the listing query; split out so the SQL can be checked without a database.
func buildListQuery(userID string, filter domain.TransactionFilter) (string, []any) {
	var sb strings.Builder
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`)
	if filter.AccountID != "" {
		p := arg(filter.AccountID)
		sb.WriteString(` AND (account_id = ` + p + ` OR to_account_id = ` + p + `)`)
	}
	if filter.TransactionType != "" {
		sb.WriteString(` AND transaction_type = ` + arg(string(filter.TransactionType)))
	}
	if filter.From != nil {
		sb.WriteString(` AND transaction_date >= ` + arg(domain.DateOnly(*filter.From)))
	}
	if filter.To != nil {
		sb.WriteString(` AND transaction_date <= ` + arg(domain.DateOnly(*filter.To)))
	}
	if filter.RecurringOnly {
		sb.WriteString(` AND is_recurring`)
	}
	if filter.AfterDate != nil && filter.AfterCreatedAt != nil {
		d, c, id := arg(domain.DateOnly(*filter.AfterDate)), arg(*filter.AfterCreatedAt), arg(filter.AfterID)
		sb.WriteString(` AND (transaction_date, created_at, transaction_id) < (` + d + `, ` + c + `, ` + id + `)`)
	}
	sb.WriteString(` ORDER BY transaction_date DESC, created_at DESC, transaction_id DESC`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(filter.Limit))
	}
	return sb.String(), args
}

func (r *PgxTransactionRepository) ListTransactionsByAccount(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 OR to_account_id = $1
		ORDER BY transaction_date DESC, created_at DESC, transaction_id DESC;
	`
	rows, err := r.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, wrapErr(err, "failed to list transactions of account %s", accountID)
	}
	return collectTransactions(rows)
}

// UpdateTransaction rewrites the editable columns and drops the sweep lease. Provenance is left alone.
func (r *PgxTransactionRepository) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	m := mapping.ToModelTransaction(txn)

	query := `
		UPDATE transactions
		SET account_id = $2, to_account_id = $3, transaction_type = $4, amount = $5, currency_code = $6,
			category = $7, transaction_date = $8, description = $9, tags = $10,
			is_recurring = $11, recurrence_interval = $12, recurrence_end_date = $13, next_recurrence = $14,
			attachments = $15, location = $16, last_updated_at = $17, last_updated_by = $18, claimed_until = NULL
		WHERE transaction_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query,
		m.TransactionID,
		m.AccountID,
		m.ToAccountID,
		m.TransactionType,
		m.Amount,
		m.CurrencyCode,
		m.Category,
		m.TransactionDate,
		m.Description,
		m.Tags,
		m.IsRecurring,
		m.RecurrenceInterval,
		m.RecurrenceEndDate,
		m.NextRecurrence,
		m.Attachments,
		m.Location,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return wrapErr(err, "failed to update transaction %s", m.TransactionID)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PgxTransactionRepository) DeleteTransaction(ctx context.Context, transactionID string) error {
	cmdTag, err := r.Pool.Exec(ctx, `DELETE FROM transactions WHERE transaction_id = $1;`, transactionID)
	if err != nil {
		return wrapErr(err, "failed to delete transaction %s", transactionID)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ClaimDueTemplates leases due templates in one statement. SKIP LOCKED keeps concurrent
// sweeps from blocking on each other's rows.
func (r *PgxTransactionRepository) ClaimDueTemplates(ctx context.Context, today time.Time, now time.Time, leaseUntil time.Time, limit int) ([]domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET claimed_until = $3
		WHERE transaction_id IN (
			SELECT transaction_id
			FROM transactions
			WHERE is_recurring
				AND next_recurrence IS NOT NULL
				AND next_recurrence <= $1
				AND (claimed_until IS NULL OR claimed_until <= $2)
			ORDER BY next_recurrence, transaction_id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + transactionColumns + `;
	`
	rows, err := r.Pool.Query(ctx, query, domain.DateOnly(today), now, leaseUntil, limit)
	if err != nil {
		return nil, wrapErr(err, "failed to claim due templates")
	}
	claimed, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sort.Slice(claimed, func(i, j int) bool {
		a, b := *claimed[i].Recurrence.NextRecurrence, *claimed[j].Recurrence.NextRecurrence
		if a.Equal(b) {
			return claimed[i].TransactionID < claimed[j].TransactionID
		}
		return a.Before(b)
	})
	return claimed, nil
}

// AdvanceTemplate only matches while the sweep's lease is intact, so a stop or edit made
// after the claim wins over the stale snapshot.
func (r *PgxTransactionRepository) AdvanceTemplate(ctx context.Context, templateID string, claimedUntil time.Time, next time.Time, isRecurring bool, now time.Time) error {
	query := `
		UPDATE transactions
		SET next_recurrence = $3, is_recurring = $4, last_updated_at = $5
		WHERE transaction_id = $1 AND is_recurring AND claimed_until = $2;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, templateID, claimedUntil, domain.DateOnly(next), isRecurring, now)
	if err != nil {
		return wrapErr(err, "failed to advance template %s", templateID)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, templateID)
	}
	return nil
}

func (r *PgxTransactionRepository) ReleaseTemplate(ctx context.Context, templateID string, claimedUntil time.Time) error {
	query := `UPDATE transactions SET claimed_until = NULL WHERE transaction_id = $1 AND claimed_until = $2;`
	cmdTag, err := r.Pool.Exec(ctx, query, templateID, claimedUntil)
	if err != nil {
		return wrapErr(err, "failed to release template %s", templateID)
	}
	if cmdTag.RowsAffected() == 0 {
		if err := r.conflictOrNotFound(ctx, templateID); errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (r *PgxTransactionRepository) StopTemplate(ctx context.Context, templateID string, now time.Time) error {
	query := `
		UPDATE transactions
		SET is_recurring = FALSE, claimed_until = NULL, last_updated_at = $2
		WHERE transaction_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, templateID, now)
	if err != nil {
		return wrapErr(err, "failed to stop template %s", templateID)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// conflictOrNotFound tells a missing row apart from one whose state no longer matches.
func (r *PgxTransactionRepository) conflictOrNotFound(ctx context.Context, templateID string) error {
	var exists bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1);`, templateID).Scan(&exists)
	if err != nil {
		return wrapErr(err, "failed to look up template %s", templateID)
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrConflict
}
