package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
)

const (
	defaultSweepBatchSize  = 100
	defaultSweepClaimLease = 15 * time.Minute
)

// RecurrenceService materializes due recurring templates into concrete transactions.
type RecurrenceService struct {
	BaseService
	templates portsrepo.RecurringTemplateStore
	lookup    portsrepo.TransactionReader
	emitter   portssvc.OccurrenceEmitter
	guard     lock.Guard
	batchSize int
	lease     time.Duration
}

// RecurrenceOption is a functional option for configuring the recurrence service
type RecurrenceOption func(*RecurrenceService)

// WithSweepBatchSize bounds how many templates one claim takes.
func WithSweepBatchSize(n int) RecurrenceOption {
	return func(s *RecurrenceService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSweepClaimLease sets how long a claimed template stays invisible to other sweeps.
func WithSweepClaimLease(d time.Duration) RecurrenceOption {
	return func(s *RecurrenceService) {
		if d > 0 {
			s.lease = d
		}
	}
}

// WithSweepGuard keeps overlapping sweeps (scheduled and manual, or several replicas) from running at once.
func WithSweepGuard(guard lock.Guard) RecurrenceOption {
	return func(s *RecurrenceService) {
		s.guard = guard
	}
}

// NewRecurrenceService creates a new recurrence service.
func NewRecurrenceService(txnRepo portsrepo.TransactionRepositoryFacade, emitter portssvc.OccurrenceEmitter, options ...RecurrenceOption) *RecurrenceService {
	svc := &RecurrenceService{
		templates: txnRepo,
		lookup:    txnRepo,
		emitter:   emitter,
		batchSize: defaultSweepBatchSize,
		lease:     defaultSweepClaimLease,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.RecurrenceSvc = (*RecurrenceService)(nil)

// Sweep processes every template due on or before now's date, one at a time.
// A failure on one template is logged and never stops the sweep.
func (s *RecurrenceService) Sweep(ctx context.Context, now time.Time) (*domain.SweepResult, error) {
	result := &domain.SweepResult{}
	if s.guard != nil {
		release, acquired, err := s.guard.TryLock(ctx, lock.SweepKey)
		if err != nil {
			return result, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			s.LogInfo(ctx, "Recurrence sweep already running elsewhere, skipping")
			return result, nil
		}
		defer release()
	}

	today := domain.DateOnly(now)
	s.LogInfo(ctx, "Recurrence sweep started", slog.String("today", domain.FormatDate(today)))

	// Every claim is held until the sweep ends so a template advanced to a date that is still due
	// cannot be claimed again in the same run. Dropping them afterwards lets a manual re-run retry
	// skipped templates straight away.
	held := make(map[string]time.Time)
	defer func() {
		for id, lease := range held {
			err := s.templates.ReleaseTemplate(context.WithoutCancel(ctx), id, lease)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				s.LogWarn(ctx, "Failed to release template claim", slog.String("template_id", id), slog.String("error", err.Error()))
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		claimedAt := s.Now()
		batch, err := s.templates.ClaimDueTemplates(ctx, today, claimedAt, claimedAt.Add(s.lease), s.batchSize)
		if err != nil {
			s.LogError(ctx, err, "Failed to claim due templates")
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		for _, template := range batch {
			if template.Recurrence.ClaimedUntil == nil {
				continue
			}
			_, seen := held[template.TransactionID]
			held[template.TransactionID] = *template.Recurrence.ClaimedUntil
			if seen {
				// Edited after this run processed it, which dropped the lease. One emission per run.
				continue
			}
			result.Claimed++
			s.processTemplate(ctx, template, today, result)
		}
	}

	s.LogInfo(ctx, "Recurrence sweep finished",
		slog.Int("claimed", result.Claimed),
		slog.Int("emitted", result.Emitted),
		slog.Int("deduplicated", result.Deduplicated),
		slog.Int("advanced", result.Advanced),
		slog.Int("expired", result.Expired),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

// processTemplate emits and advances one claimed template.
func (s *RecurrenceService) processTemplate(ctx context.Context, template domain.Transaction, today time.Time, result *domain.SweepResult) {
	logger := s.GetLogger(ctx).With(slog.String("template_id", template.TransactionID))
	lease := *template.Recurrence.ClaimedUntil

	next, stillActive, err := template.Recurrence.Next()
	if err != nil {
		logger.Warn("Skipping template with invalid recurrence", slog.String("error", err.Error()))
		result.Skipped++
		return
	}

	scheduled := *template.Recurrence.NextRecurrence
	if end := template.Recurrence.EndDate; end != nil && domain.DateOnly(scheduled).After(domain.DateOnly(*end)) {
		if err := s.templates.AdvanceTemplate(ctx, template.TransactionID, lease, scheduled, false, s.Now()); err != nil {
			s.recordAdvanceFailure(logger, err, result)
			return
		}
		logger.Info("Template past its end date, expired without emitting",
			slog.String("next_recurrence", domain.FormatDate(scheduled)),
			slog.String("end_date", domain.FormatDate(*end)))
		result.Expired++
		return
	}

	key := domain.IdempotencyKeyFor(template.TransactionID, scheduled)
	existing, err := s.lookup.FindTransactionByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		logger.Info("Occurrence already emitted, advancing schedule",
			slog.String("idempotency_key", key),
			slog.String("transaction_id", existing.TransactionID))
		result.Deduplicated++
	case errors.Is(err, apperrors.ErrNotFound):
		occurrence, emitErr := s.emitter.EmitOccurrence(ctx, template, today, key)
		if errors.Is(emitErr, apperrors.ErrDuplicate) {
			// Another sweep won the race for this key after our lookup.
			result.Deduplicated++
			break
		}
		if emitErr != nil {
			logger.Warn("Skipping template, occurrence not emitted",
				slog.String("error", emitErr.Error()),
				slog.Bool("account_not_found", errors.Is(emitErr, apperrors.ErrAccountNotFound)))
			if errors.Is(emitErr, apperrors.ErrAccountNotFound) || errors.Is(emitErr, apperrors.ErrValidation) {
				result.Skipped++
			} else {
				result.Failed++
			}
			return
		}
		logger.Info("Occurrence emitted",
			slog.String("transaction_id", occurrence.TransactionID),
			slog.String("idempotency_key", key))
		result.Emitted++
	default:
		logger.Warn("Skipping template, idempotency lookup failed", slog.String("error", err.Error()))
		result.Failed++
		return
	}

	if err := s.templates.AdvanceTemplate(ctx, template.TransactionID, lease, next, stillActive, s.Now()); err != nil {
		s.recordAdvanceFailure(logger, err, result)
		return
	}
	if stillActive {
		result.Advanced++
	} else {
		logger.Info("Template expired", slog.String("next_recurrence", domain.FormatDate(next)))
		result.Expired++
	}
}

// recordAdvanceFailure counts a template whose schedule was not written. A later sweep picks it up
// again and the idempotency key prevents a second emission.
func (s *RecurrenceService) recordAdvanceFailure(logger *slog.Logger, err error, result *domain.SweepResult) {
	if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
		logger.Info("Template stopped, edited or deleted during the sweep, keeping its current schedule")
		result.Skipped++
		return
	}
	logger.Error("Failed to advance template", slog.String("error", err.Error()))
	result.Failed++
}
