package accounting

import (
	"fmt"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CalculateEffects returns the balance changes a transaction causes when it is applied.
// INCOME credits the source, EXPENSE debits it, TRANSFER moves the amount from source to destination.
func CalculateEffects(txn domain.Transaction) (domain.BalanceChanges, error) {
	changes := domain.BalanceChanges{}
	switch txn.TransactionType {
	case domain.Income:
		changes.Add(txn.AccountID, txn.Amount)
	case domain.Expense:
		changes.Add(txn.AccountID, txn.Amount.Neg())
	case domain.Transfer:
		if txn.ToAccountID == nil || *txn.ToAccountID == "" {
			return nil, fmt.Errorf("%w: transfer %s has no destination account", apperrors.ErrValidation, txn.TransactionID)
		}
		changes.Add(txn.AccountID, txn.Amount.Neg())
		changes.Add(*txn.ToAccountID, txn.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown transaction type '%s' for transaction %s", apperrors.ErrValidation, txn.TransactionType, txn.TransactionID)
	}
	return changes, nil
}

// CalculateSignedAmount is the effect of txn on accountID alone (zero when the account is not touched).
func CalculateSignedAmount(txn domain.Transaction, accountID string) (decimal.Decimal, error) {
	changes, err := CalculateEffects(txn)
	if err != nil {
		return decimal.Zero, err
	}
	return changes[accountID], nil
}

// ExpectedBalance derives an account's balance from its opening balance and its transaction log.
func ExpectedBalance(account domain.Account, transactions []domain.Transaction) (decimal.Decimal, error) {
	balance := account.OpeningBalance
	for _, txn := range transactions {
		signed, err := CalculateSignedAmount(txn, account.AccountID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("error calculating signed amount for transaction %s: %w", txn.TransactionID, err)
		}
		balance = balance.Add(signed)
	}
	return balance, nil
}
