package services

import (
	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/platform/config"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// Every service shares the same locker so balance writes serialize across the whole process,
// or across replicas when a Redis-backed locker is supplied.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, locker lock.Locker) *portssvc.ServiceContainer {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}

	container := &portssvc.ServiceContainer{}

	// The ledger is the single writer of balances; everything else goes through it.
	ledger := NewLedgerService(repos.AccountRepo, WithLedgerLocker(locker))
	container.Ledger = ledger

	txnSvc := NewTransactionService(
		repos.AccountRepo,
		repos.TransactionRepo,
		ledger,
		WithTransactionLocker(locker),
	)
	container.Transaction = txnSvc

	container.Account = NewAccountService(
		repos.AccountRepo,
		repos.TransactionRepo,
		ledger,
		WithAccountLocker(locker),
	)

	recurrenceOpts := []RecurrenceOption{WithSweepGuard(locker)}
	if cfg != nil {
		recurrenceOpts = append(recurrenceOpts,
			WithSweepBatchSize(cfg.SweepBatchSize),
			WithSweepClaimLease(cfg.SweepClaimLease),
		)
	}
	container.Recurrence = NewRecurrenceService(repos.TransactionRepo, txnSvc, recurrenceOpts...)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.AccountSvcFacade = (*accountService)(nil)
	_ portssvc.RecurrenceSvc    = (*RecurrenceService)(nil)
)
