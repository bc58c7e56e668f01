package dto

import (
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreditDetailsRequest carries the optional credit metadata of an account.
type CreditDetailsRequest struct {
	InterestRate   *decimal.Decimal `json:"interestRate"`
	CreditLimit    *decimal.Decimal `json:"creditLimit"`
	MinimumPayment *decimal.Decimal `json:"minimumPayment"`
	MaturityDate   *time.Time       `json:"maturityDate"`
}

// CreateAccountRequest defines the data needed to create a new account.
type CreateAccountRequest struct {
	Name           string                `json:"name" binding:"required"`
	Institution    string                `json:"institution" binding:"required"`
	AccountType    domain.AccountType    `json:"accountType" binding:"required,oneof=CHECKING SAVINGS CREDIT LOAN INVESTMENT CASH MORTGAGE"`
	AccountNumber  string                `json:"accountNumber" binding:"required,max=64"`
	CurrencyCode   string                `json:"currencyCode" binding:"required,iso4217"`
	OpeningBalance *decimal.Decimal      `json:"openingBalance"` // Optional, defaults to zero
	Credit         *CreditDetailsRequest `json:"credit"`
}

// UpdateAccountRequest defines the data allowed for updating an account.
// Use pointers to distinguish between zero-value updates and fields not provided.
type UpdateAccountRequest struct {
	Name        *string               `json:"name"`
	Institution *string               `json:"institution"`
	IsActive    *bool                 `json:"isActive"`
	Credit      *CreditDetailsRequest `json:"credit"` // Replaces the stored credit metadata when present
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	AccountID      string               `json:"accountID"`
	Name           string               `json:"name"`
	Institution    string               `json:"institution"`
	AccountType    domain.AccountType   `json:"accountType"`
	AccountNumber  string               `json:"accountNumber"`
	CurrencyCode   string               `json:"currencyCode"`
	OpeningBalance decimal.Decimal      `json:"openingBalance"`
	Balance        decimal.Decimal      `json:"balance"`
	IsActive       bool                 `json:"isActive"`
	Credit         domain.CreditDetails `json:"credit"`
	CreatedAt      time.Time            `json:"createdAt"`
	CreatedBy      string               `json:"createdBy"`
	LastUpdatedAt  time.Time            `json:"lastUpdatedAt"`
	LastUpdatedBy  string               `json:"lastUpdatedBy"`
}

// ToCreditDetails converts the request form into the domain form.
func (r *CreditDetailsRequest) ToCreditDetails() domain.CreditDetails {
	if r == nil {
		return domain.CreditDetails{}
	}
	return domain.CreditDetails{
		InterestRate:   r.InterestRate,
		CreditLimit:    r.CreditLimit,
		MinimumPayment: r.MinimumPayment,
		MaturityDate:   r.MaturityDate,
	}
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:      acc.AccountID,
		Name:           acc.Name,
		Institution:    acc.Institution,
		AccountType:    acc.AccountType,
		AccountNumber:  acc.AccountNumber,
		CurrencyCode:   acc.CurrencyCode,
		OpeningBalance: acc.OpeningBalance,
		Balance:        acc.Balance,
		IsActive:       acc.IsActive,
		Credit:         acc.Credit,
		CreatedAt:      acc.CreatedAt,
		CreatedBy:      acc.CreatedBy,
		LastUpdatedAt:  acc.LastUpdatedAt,
		LastUpdatedBy:  acc.LastUpdatedBy,
	}
}

// ToListAccountResponse converts a slice of domain.Account to a slice of AccountResponse DTOs
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i := range accounts {
		res[i] = ToAccountResponse(&accounts[i])
	}
	return res
}

// ListAccountsParams defines query parameters for listing accounts.
type ListAccountsParams struct {
	Limit  int `form:"limit,default=20" binding:"min=1,max=100"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// ListAccountsResponse wraps the list of accounts.
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// ReconcileAccountRequest controls whether a detected drift is written back.
type ReconcileAccountRequest struct {
	Fix bool `json:"fix"`
}
