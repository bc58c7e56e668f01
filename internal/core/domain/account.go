package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the kind of real-world account a user holds.
type AccountType string

const (
	Checking   AccountType = "CHECKING"
	Savings    AccountType = "SAVINGS"
	Credit     AccountType = "CREDIT"
	Loan       AccountType = "LOAN"
	Investment AccountType = "INVESTMENT"
	Cash       AccountType = "CASH"
	Mortgage   AccountType = "MORTGAGE"
)

// IsValid reports whether t is one of the known account types.
func (t AccountType) IsValid() bool {
	switch t {
	case Checking, Savings, Credit, Loan, Investment, Cash, Mortgage:
		return true
	}
	return false
}

// CreditDetails holds the metadata relevant to credit, loan and mortgage accounts.
type CreditDetails struct {
	InterestRate   *decimal.Decimal `json:"interestRate,omitempty"`
	CreditLimit    *decimal.Decimal `json:"creditLimit,omitempty"`
	MinimumPayment *decimal.Decimal `json:"minimumPayment,omitempty"`
	MaturityDate   *time.Time       `json:"maturityDate,omitempty"`
}

// Account represents a financial account owned by a single user.
// Balance is a materialized projection of the transaction log, mutated only by the ledger.
type Account struct {
	AccountID      string          `json:"accountID"`
	UserID         string          `json:"userID"` // owner
	Name           string          `json:"name"`
	Institution    string          `json:"institution"`
	AccountType    AccountType     `json:"accountType"`
	AccountNumber  string          `json:"accountNumber"` // unique across the system
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Balance        decimal.Decimal `json:"balance"`
	CurrencyCode   string          `json:"currencyCode"`
	IsActive       bool            `json:"isActive"`
	Credit         CreditDetails   `json:"credit"`
	AuditFields
}

// OwnedBy reports whether the account belongs to userID.
func (a Account) OwnedBy(userID string) bool {
	return a.UserID == userID
}
