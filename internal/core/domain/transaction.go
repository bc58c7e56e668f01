package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// TransactionType determines the direction of a transaction's effect on balances.
type TransactionType string

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense || t == Transfer
}

// Attachment is a reference to a file stored outside the service (receipt scan, invoice).
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// GeoLocation records where a transaction happened.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Transaction is a single money movement on one account, or between two accounts for transfers.
// Amount is never negative; the sign of its effect comes from TransactionType.
type Transaction struct {
	TransactionID   string          `json:"transactionID"`
	UserID          string          `json:"userID"`
	AccountID       string          `json:"accountID"`
	ToAccountID     *string         `json:"toAccountID,omitempty"`
	TransactionType TransactionType `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currencyCode"`
	Category        string          `json:"category"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"`
	Tags            []string        `json:"tags"`
	Recurrence      Recurrence      `json:"recurrence"`
	// TemplateID and IdempotencyKey are set on occurrences emitted by the recurrence sweep.
	TemplateID     *string      `json:"templateID,omitempty"`
	IdempotencyKey *string      `json:"idempotencyKey,omitempty"`
	Attachments    []Attachment `json:"attachments"`
	Location       *GeoLocation `json:"location,omitempty"`
	AuditFields
}

// Validate checks the invariants a transaction must hold before it is persisted.
func (t Transaction) Validate() error {
	if !t.TransactionType.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, t.TransactionType)
	}
	if t.AccountID == "" {
		return fmt.Errorf("%w: account is required", apperrors.ErrValidation)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", apperrors.ErrValidation)
	}
	if t.TransactionType == Transfer {
		if t.ToAccountID == nil || *t.ToAccountID == "" {
			return fmt.Errorf("%w: transfer requires a destination account", apperrors.ErrValidation)
		}
		if *t.ToAccountID == t.AccountID {
			return fmt.Errorf("%w: transfer destination must differ from source", apperrors.ErrValidation)
		}
	} else if t.ToAccountID != nil {
		return fmt.Errorf("%w: only transfers may reference a destination account", apperrors.ErrValidation)
	}
	if t.Recurrence.IsRecurring {
		if !t.Recurrence.Interval.IsValid() {
			return fmt.Errorf("%w: recurring transaction requires a valid interval", apperrors.ErrValidation)
		}
		if t.Recurrence.EndDate != nil && DateOnly(*t.Recurrence.EndDate).Before(DateOnly(t.Date)) {
			return fmt.Errorf("%w: end date is before the transaction date", apperrors.ErrValidation)
		}
	}
	return nil
}

// AccountIDs returns the accounts this transaction touches, source first.
func (t Transaction) AccountIDs() []string {
	ids := []string{t.AccountID}
	if t.TransactionType == Transfer && t.ToAccountID != nil {
		ids = append(ids, *t.ToAccountID)
	}
	return ids
}

// Touches reports whether the transaction references accountID as source or destination.
func (t Transaction) Touches(accountID string) bool {
	if t.AccountID == accountID {
		return true
	}
	return t.ToAccountID != nil && *t.ToAccountID == accountID
}

// CloneForOccurrence builds the concrete transaction a recurring template emits for today.
// The clone is never itself recurring.
func (t Transaction) CloneForOccurrence(id string, today time.Time, idempotencyKey string, now time.Time) Transaction {
	templateID := t.TransactionID
	key := idempotencyKey
	clone := Transaction{
		TransactionID:   id,
		UserID:          t.UserID,
		AccountID:       t.AccountID,
		TransactionType: t.TransactionType,
		Amount:          t.Amount,
		CurrencyCode:    t.CurrencyCode,
		Category:        t.Category,
		Date:            DateOnly(today),
		Description:     t.Description,
		Tags:            append([]string(nil), t.Tags...),
		TemplateID:      &templateID,
		IdempotencyKey:  &key,
		AuditFields: AuditFields{
			CreatedAt:     now,
			CreatedBy:     t.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: t.UserID,
		},
	}
	if t.ToAccountID != nil {
		to := *t.ToAccountID
		clone.ToAccountID = &to
	}
	return clone
}
