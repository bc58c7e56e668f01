package dto

import (
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RecurrenceRequest describes the schedule of a recurring transaction.
type RecurrenceRequest struct {
	IsRecurring bool                      `json:"isRecurring"`
	Interval    domain.RecurrenceInterval `json:"interval" binding:"omitempty,oneof=daily weekly bi-weekly monthly quarterly yearly"`
	EndDate     *time.Time                `json:"endDate"`
}

// CreateTransactionRequest defines the data needed to record a transaction.
type CreateTransactionRequest struct {
	AccountID       string                 `json:"accountID" binding:"required"`
	ToAccountID     *string                `json:"toAccountID"` // Required for TRANSFER
	TransactionType domain.TransactionType `json:"transactionType" binding:"required,oneof=INCOME EXPENSE TRANSFER"`
	Amount          *decimal.Decimal       `json:"amount" binding:"required"`
	CurrencyCode    string                 `json:"currencyCode" binding:"omitempty,iso4217"` // Defaults to the account currency
	Category        string                 `json:"category" binding:"max=64"`
	Date            *time.Time             `json:"date"` // Defaults to today
	Description     string                 `json:"description" binding:"max=512"`
	Tags            []string               `json:"tags" binding:"max=20,dive,max=32"`
	Recurrence      *RecurrenceRequest     `json:"recurrence"`
	Attachments     []domain.Attachment    `json:"attachments"`
	Location        *domain.GeoLocation    `json:"location"`
}

// UpdateTransactionRequest defines the fields a user may change on a transaction.
// Nil fields are left untouched.
type UpdateTransactionRequest struct {
	AccountID       *string                 `json:"accountID"`
	ToAccountID     *string                 `json:"toAccountID"`
	TransactionType *domain.TransactionType `json:"transactionType" binding:"omitempty,oneof=INCOME EXPENSE TRANSFER"`
	Amount          *decimal.Decimal        `json:"amount"`
	Category        *string                 `json:"category" binding:"omitempty,max=64"`
	Date            *time.Time              `json:"date"`
	Description     *string                 `json:"description" binding:"omitempty,max=512"`
	Tags            []string                `json:"tags" binding:"omitempty,max=20,dive,max=32"`
	Recurrence      *RecurrenceRequest      `json:"recurrence"`
}

// TransactionResponse defines the data returned for a transaction.
type TransactionResponse struct {
	TransactionID   string                 `json:"transactionID"`
	AccountID       string                 `json:"accountID"`
	ToAccountID     *string                `json:"toAccountID,omitempty"`
	TransactionType domain.TransactionType `json:"transactionType"`
	Amount          decimal.Decimal        `json:"amount"`
	CurrencyCode    string                 `json:"currencyCode"`
	Category        string                 `json:"category"`
	Date            time.Time              `json:"date"`
	Description     string                 `json:"description"`
	Tags            []string               `json:"tags"`
	Recurrence      domain.Recurrence      `json:"recurrence"`
	TemplateID      *string                `json:"templateID,omitempty"`
	Attachments     []domain.Attachment    `json:"attachments"`
	Location        *domain.GeoLocation    `json:"location,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	LastUpdatedAt   time.Time              `json:"lastUpdatedAt"`
}

// ToTransactionResponse converts a domain.Transaction to its response DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	tags := txn.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := txn.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return TransactionResponse{
		TransactionID:   txn.TransactionID,
		AccountID:       txn.AccountID,
		ToAccountID:     txn.ToAccountID,
		TransactionType: txn.TransactionType,
		Amount:          txn.Amount,
		CurrencyCode:    txn.CurrencyCode,
		Category:        txn.Category,
		Date:            txn.Date,
		Description:     txn.Description,
		Tags:            tags,
		Recurrence:      txn.Recurrence,
		TemplateID:      txn.TemplateID,
		Attachments:     attachments,
		Location:        txn.Location,
		CreatedAt:       txn.CreatedAt,
		LastUpdatedAt:   txn.LastUpdatedAt,
	}
}

// ToListTransactionResponse converts a slice of transactions.
func ToListTransactionResponse(txns []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, len(txns))
	for i := range txns {
		res[i] = ToTransactionResponse(&txns[i])
	}
	return res
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	AccountID       string     `form:"accountID"`
	TransactionType string     `form:"type" binding:"omitempty,oneof=INCOME EXPENSE TRANSFER"`
	From            *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To              *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Limit           int        `form:"limit,default=50" binding:"min=1,max=200"`
	NextToken       string     `form:"nextToken"`
}

// ListTransactionsResponse wraps a page of transactions.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"` // Token for the next page, if any
}
