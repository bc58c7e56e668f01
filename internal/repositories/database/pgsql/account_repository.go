package pgsql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	"github.com/SscSPs/pfm_backend/internal/models"
	"github.com/SscSPs/pfm_backend/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `account_id, user_id, name, institution, account_type, account_number,
	opening_balance, balance, currency_code, is_active,
	interest_rate, credit_limit, minimum_payment, maturity_date,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxAccountRepository struct {
	BaseRepository
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) *PgxAccountRepository {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxAccountRepository implements portsrepo.AccountRepositoryFacade
var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

func scanAccount(row pgx.Row) (models.Account, error) {
	var m models.Account
	err := row.Scan(
		&m.AccountID,
		&m.UserID,
		&m.Name,
		&m.Institution,
		&m.AccountType,
		&m.AccountNumber,
		&m.OpeningBalance,
		&m.Balance,
		&m.CurrencyCode,
		&m.IsActive,
		&m.InterestRate,
		&m.CreditLimit,
		&m.MinimumPayment,
		&m.MaturityDate,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

// SaveAccount inserts a new account.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.AccountID,
		m.UserID,
		m.Name,
		m.Institution,
		m.AccountType,
		m.AccountNumber,
		m.OpeningBalance,
		m.Balance,
		m.CurrencyCode,
		m.IsActive,
		m.InterestRate,
		m.CreditLimit,
		m.MinimumPayment,
		m.MaturityDate,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return fmt.Errorf("%w: account number already in use", apperrors.ErrDuplicate)
		}
		return wrapErr(err, "failed to save account %s", m.AccountID)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`

	m, err := scanAccount(r.Pool.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, wrapErr(err, "failed to find account by ID %s", accountID)
	}
	acc := mapping.ToDomainAccount(m)
	return &acc, nil
}

// FindAccountsByIDs retrieves multiple accounts by their IDs.
func (r *PgxAccountRepository) FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1);`
	rows, err := r.Pool.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, wrapErr(err, "failed to query accounts by IDs")
	}
	defer rows.Close()

	accountsMap := make(map[string]domain.Account, len(accountIDs))
	for rows.Next() {
		m, err := scanAccount(rows)
		if err != nil {
			return nil, wrapErr(err, "failed to scan account row during batch fetch")
		}
		accountsMap[m.AccountID] = mapping.ToDomainAccount(m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "error iterating account rows during batch fetch")
	}

	// Missing ids are simply absent; the caller decides whether that is an error.
	return accountsMap, nil
}

// ListAccountsByUser retrieves a page of the user's accounts, oldest first.
func (r *PgxAccountRepository) ListAccountsByUser(ctx context.Context, userID string, limit int, offset int) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at, account_id
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, wrapErr(err, "failed to query accounts for user %s", userID)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		m, err := scanAccount(rows)
		if err != nil {
			return nil, wrapErr(err, "failed to scan account row for user %s", userID)
		}
		accounts = append(accounts, mapping.ToDomainAccount(m))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "error iterating account rows for user %s", userID)
	}
	return accounts, nil
}

// UpdateAccount updates the descriptive fields of an account. Balance is owned by the ledger.
func (r *PgxAccountRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)

	query := `
		UPDATE accounts
		SET name = $2, institution = $3, is_active = $4,
			interest_rate = $5, credit_limit = $6, minimum_payment = $7, maturity_date = $8,
			last_updated_at = $9, last_updated_by = $10
		WHERE account_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query,
		m.AccountID,
		m.Name,
		m.Institution,
		m.IsActive,
		m.InterestRate,
		m.CreditLimit,
		m.MinimumPayment,
		m.MaturityDate,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return wrapErr(err, "failed to execute update account %s", m.AccountID)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ApplyBalanceChanges adds every delta in one database transaction.
func (r *PgxAccountRepository) ApplyBalanceChanges(ctx context.Context, changes domain.BalanceChanges, userID string, now time.Time) error {
	if len(changes) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		return r.applyBalanceChangesInTx(ctx, tx, changes, userID, now)
	})
}

// DeleteAccountCascade removes the account and its transactions and reverses the counterpart effects.
func (r *PgxAccountRepository) DeleteAccountCascade(ctx context.Context, accountID string, counterpartChanges domain.BalanceChanges, userID string, now time.Time) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := r.lockAccountsInTx(ctx, tx, []string{accountID}); err != nil {
			return err
		}
		if err := r.applyBalanceChangesInTx(ctx, tx, counterpartChanges.Without(accountID), userID, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE account_id = $1 OR to_account_id = $1;`, accountID); err != nil {
			return wrapErr(err, "failed to delete transactions of account %s", accountID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE account_id = $1;`, accountID); err != nil {
			return wrapErr(err, "failed to delete account %s", accountID)
		}
		return nil
	})
}

// lockAccountsInTx takes row locks in id order and fails with ErrAccountNotFound if any row is missing.
func (r *PgxAccountRepository) lockAccountsInTx(ctx context.Context, tx pgx.Tx, accountIDs []string) error {
	rows, err := tx.Query(ctx, `SELECT account_id FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE;`, accountIDs)
	if err != nil {
		return wrapErr(err, "failed to lock accounts")
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return wrapErr(err, "failed to scan locked account rows")
	}
	if len(found) == len(accountIDs) {
		return nil
	}

	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	missing := []string{}
	for _, id := range accountIDs {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	slog.WarnContext(ctx, "Some accounts requested for update lock were not found", "missing_accounts", missing)
	return fmt.Errorf("%w: %v", apperrors.ErrAccountNotFound, missing)
}

func (r *PgxAccountRepository) applyBalanceChangesInTx(ctx context.Context, tx pgx.Tx, changes domain.BalanceChanges, userID string, now time.Time) error {
	accountIDs := changes.AccountIDs()
	if len(accountIDs) == 0 {
		return nil
	}
	if err := r.lockAccountsInTx(ctx, tx, accountIDs); err != nil {
		return err
	}

	query := `
		UPDATE accounts
		SET balance = balance + $2, last_updated_at = $3, last_updated_by = $4
		WHERE account_id = $1;
	`
	batch := &pgx.Batch{}
	queued := make([]string, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		delta := changes[accountID]
		if delta.IsZero() {
			continue
		}
		batch.Queue(query, accountID, delta, now, userID)
		queued = append(queued, accountID)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	var batchErr error
	for _, accountID := range queued {
		ct, err := br.Exec()
		if err != nil {
			if batchErr == nil {
				batchErr = wrapErr(err, "failed to update balance for account %s", accountID)
			}
		} else if ct.RowsAffected() == 0 && batchErr == nil {
			batchErr = fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountID)
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = wrapErr(err, "failed to close balance update batch")
	}
	return batchErr
}
