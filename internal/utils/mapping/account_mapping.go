package mapping

import (
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/internal/models"
)

// ToModelAccount converts a domain Account to a model Account
func ToModelAccount(d domain.Account) models.Account {
	return models.Account{
		AccountID:      d.AccountID,
		UserID:         d.UserID,
		Name:           d.Name,
		Institution:    d.Institution,
		AccountType:    models.AccountType(d.AccountType),
		AccountNumber:  d.AccountNumber,
		OpeningBalance: d.OpeningBalance,
		Balance:        d.Balance,
		CurrencyCode:   d.CurrencyCode,
		IsActive:       d.IsActive,
		InterestRate:   d.Credit.InterestRate,
		CreditLimit:    d.Credit.CreditLimit,
		MinimumPayment: d.Credit.MinimumPayment,
		MaturityDate:   d.Credit.MaturityDate,
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainAccount converts a model Account to a domain Account
func ToDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		AccountID:      m.AccountID,
		UserID:         m.UserID,
		Name:           m.Name,
		Institution:    m.Institution,
		AccountType:    domain.AccountType(m.AccountType),
		AccountNumber:  m.AccountNumber,
		OpeningBalance: m.OpeningBalance,
		Balance:        m.Balance,
		CurrencyCode:   m.CurrencyCode,
		IsActive:       m.IsActive,
		Credit: domain.CreditDetails{
			InterestRate:   m.InterestRate,
			CreditLimit:    m.CreditLimit,
			MinimumPayment: m.MinimumPayment,
			MaturityDate:   m.MaturityDate,
		},
		AuditFields: ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainAccountSlice converts a slice of model Accounts to a slice of domain Accounts
func ToDomainAccountSlice(ms []models.Account) []domain.Account {
	ds := make([]domain.Account, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainAccount(m)
	}
	return ds
}
