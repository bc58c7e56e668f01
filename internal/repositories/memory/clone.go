package memory

import (
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// The store hands out and keeps copies so callers can never alias stored state.

func cloneAccount(a domain.Account) domain.Account {
	a.Credit = cloneCredit(a.Credit)
	return a
}

func cloneCredit(c domain.CreditDetails) domain.CreditDetails {
	c.InterestRate = cloneDecimal(c.InterestRate)
	c.CreditLimit = cloneDecimal(c.CreditLimit)
	c.MinimumPayment = cloneDecimal(c.MinimumPayment)
	c.MaturityDate = cloneTime(c.MaturityDate)
	return c
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	t.ToAccountID = cloneString(t.ToAccountID)
	t.TemplateID = cloneString(t.TemplateID)
	t.IdempotencyKey = cloneString(t.IdempotencyKey)
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	if t.Attachments != nil {
		t.Attachments = append([]domain.Attachment(nil), t.Attachments...)
	}
	if t.Location != nil {
		loc := *t.Location
		t.Location = &loc
	}
	t.Recurrence.EndDate = cloneTime(t.Recurrence.EndDate)
	t.Recurrence.NextRecurrence = cloneTime(t.Recurrence.NextRecurrence)
	t.Recurrence.ClaimedUntil = cloneTime(t.Recurrence.ClaimedUntil)
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
