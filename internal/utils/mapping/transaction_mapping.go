package mapping

import (
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/internal/models"
)

// ToModelTransaction converts a domain Transaction to a model Transaction
func ToModelTransaction(d domain.Transaction) models.Transaction {
	m := models.Transaction{
		TransactionID:     d.TransactionID,
		UserID:            d.UserID,
		AccountID:         d.AccountID,
		ToAccountID:       d.ToAccountID,
		TransactionType:   models.TransactionType(d.TransactionType),
		Amount:            d.Amount,
		CurrencyCode:      d.CurrencyCode,
		Category:          d.Category,
		TransactionDate:   domain.DateOnly(d.Date),
		Description:       d.Description,
		Tags:              d.Tags,
		IsRecurring:       d.Recurrence.IsRecurring,
		RecurrenceEndDate: d.Recurrence.EndDate,
		NextRecurrence:    d.Recurrence.NextRecurrence,
		ClaimedUntil:      d.Recurrence.ClaimedUntil,
		TemplateID:        d.TemplateID,
		IdempotencyKey:    d.IdempotencyKey,
		Attachments:       make([]models.Attachment, 0, len(d.Attachments)),
		AuditFields:       ToModelAuditFields(d.AuditFields),
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if d.Recurrence.Interval != "" {
		interval := string(d.Recurrence.Interval)
		m.RecurrenceInterval = &interval
	}
	for _, a := range d.Attachments {
		m.Attachments = append(m.Attachments, models.Attachment(a))
	}
	if d.Location != nil {
		loc := models.Location(*d.Location)
		m.Location = &loc
	}
	return m
}

// ToDomainTransaction converts a model Transaction to a domain Transaction
func ToDomainTransaction(m models.Transaction) domain.Transaction {
	d := domain.Transaction{
		TransactionID:   m.TransactionID,
		UserID:          m.UserID,
		AccountID:       m.AccountID,
		ToAccountID:     m.ToAccountID,
		TransactionType: domain.TransactionType(m.TransactionType),
		Amount:          m.Amount,
		CurrencyCode:    m.CurrencyCode,
		Category:        m.Category,
		Date:            domain.DateOnly(m.TransactionDate),
		Description:     m.Description,
		Tags:            m.Tags,
		Recurrence: domain.Recurrence{
			IsRecurring:    m.IsRecurring,
			EndDate:        m.RecurrenceEndDate,
			NextRecurrence: m.NextRecurrence,
			ClaimedUntil:   m.ClaimedUntil,
		},
		TemplateID:     m.TemplateID,
		IdempotencyKey: m.IdempotencyKey,
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
	if m.RecurrenceInterval != nil {
		d.Recurrence.Interval = domain.RecurrenceInterval(*m.RecurrenceInterval)
	}
	if len(m.Attachments) > 0 {
		d.Attachments = make([]domain.Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			d.Attachments[i] = domain.Attachment(a)
		}
	}
	if m.Location != nil {
		loc := domain.GeoLocation(*m.Location)
		d.Location = &loc
	}
	return d
}

// ToDomainTransactionSlice converts a slice of model Transactions to a slice of domain Transactions
func ToDomainTransactionSlice(ms []models.Transaction) []domain.Transaction {
	ds := make([]domain.Transaction, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainTransaction(m)
	}
	return ds
}
