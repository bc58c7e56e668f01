package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType mirrors the account_type column.
type AccountType string

// Account is a row of the accounts table. Credit columns are nullable.
type Account struct {
	AccountID      string           `db:"account_id"`
	UserID         string           `db:"user_id"`
	Name           string           `db:"name"`
	Institution    string           `db:"institution"`
	AccountType    AccountType      `db:"account_type"`
	AccountNumber  string           `db:"account_number"`
	OpeningBalance decimal.Decimal  `db:"opening_balance"`
	Balance        decimal.Decimal  `db:"balance"`
	CurrencyCode   string           `db:"currency_code"`
	IsActive       bool             `db:"is_active"`
	InterestRate   *decimal.Decimal `db:"interest_rate"`
	CreditLimit    *decimal.Decimal `db:"credit_limit"`
	MinimumPayment *decimal.Decimal `db:"minimum_payment"`
	MaturityDate   *time.Time       `db:"maturity_date"`
	AuditFields
}
