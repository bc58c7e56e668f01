package mapping

import (
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToModelTransaction_NullableColumns(t *testing.T) {
	txn := domain.Transaction{
		TransactionID:   "txn-1",
		TransactionType: domain.Expense,
		Amount:          decimal.NewFromInt(10),
		Date:            time.Date(2024, 3, 10, 17, 45, 0, 0, time.UTC),
	}

	m := ToModelTransaction(txn)

	assert.Nil(t, m.RecurrenceInterval)
	assert.Nil(t, m.Location)
	assert.NotNil(t, m.Tags, "tags column is NOT NULL")
	assert.NotNil(t, m.Attachments, "attachments column is NOT NULL")
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), m.TransactionDate)
}

func TestToDomainTransaction_RecurrenceAndLocation(t *testing.T) {
	interval := "monthly"
	next := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	m := ToModelTransaction(domain.Transaction{
		TransactionID: "tmpl",
		Recurrence:    domain.Recurrence{IsRecurring: true, Interval: domain.Monthly, NextRecurrence: &next},
		Location:      &domain.GeoLocation{Latitude: 52.5, Longitude: 13.4, Address: "Berlin"},
		Attachments:   []domain.Attachment{{Name: "receipt.pdf", URL: "https://files.example/r.pdf"}},
	})
	assert.Equal(t, &interval, m.RecurrenceInterval)

	d := ToDomainTransaction(m)

	assert.Equal(t, domain.Monthly, d.Recurrence.Interval)
	assert.Equal(t, next, *d.Recurrence.NextRecurrence)
	assert.Equal(t, "Berlin", d.Location.Address)
	assert.Equal(t, "receipt.pdf", d.Attachments[0].Name)
}
