package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType mirrors the transaction_type column.
type TransactionType string

// Attachment is one element of the attachments JSONB column.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// Location is the location JSONB column.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Transaction is a row of the transactions table. Recurring templates and their
// emitted occurrences share the table; occurrences carry template_id and idempotency_key.
type Transaction struct {
	TransactionID      string          `db:"transaction_id"`
	UserID             string          `db:"user_id"`
	AccountID          string          `db:"account_id"`
	ToAccountID        *string         `db:"to_account_id"`
	TransactionType    TransactionType `db:"transaction_type"`
	Amount             decimal.Decimal `db:"amount"`
	CurrencyCode       string          `db:"currency_code"`
	Category           string          `db:"category"`
	TransactionDate    time.Time       `db:"transaction_date"`
	Description        string          `db:"description"`
	Tags               []string        `db:"tags"`
	IsRecurring        bool            `db:"is_recurring"`
	RecurrenceInterval *string         `db:"recurrence_interval"`
	RecurrenceEndDate  *time.Time      `db:"recurrence_end_date"`
	NextRecurrence     *time.Time      `db:"next_recurrence"`
	ClaimedUntil       *time.Time      `db:"claimed_until"`
	TemplateID         *string         `db:"template_id"`
	IdempotencyKey     *string         `db:"idempotency_key"`
	Attachments        []Attachment    `db:"attachments"`
	Location           *Location       `db:"location"`
	AuditFields
}
