package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/events"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/tracing"
	"github.com/aryan0dhankhar/paymentsportal/internal/reliability/retry"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/audit"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// referenceAttempts bounds regeneration after a reference collision.
const referenceAttempts = 3

// TransactionService owns the payment lifecycle. Every state change is a
// single conditional write in the repository; the service adds authorization,
// attribution, auditing and event fan-out around it.
type TransactionService struct {
	transactions domain.TransactionRepository
	authz        *security.AuthorizationService
	audit        *audit.Logger
	events       events.Emitter
	logger       *slog.Logger
	now          func() time.Time
}

func NewTransactionService(
	transactions domain.TransactionRepository,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	emitter events.Emitter,
	log *slog.Logger,
) *TransactionService {
	if log == nil {
		log = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(log)
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	return &TransactionService{
		transactions: transactions,
		authz:        authz,
		audit:        auditLog,
		events:       emitter,
		logger:       log,
		now:          time.Now,
	}
}

// Create records a pending SWIFT payment owned by the caller.
func (s *TransactionService) Create(ctx context.Context, actor domain.Identity, in validation.CreateTransactionInput) (*domain.Transaction, error) {
	ctx, span := tracing.Start(ctx, "TransactionService.Create")
	defer span.End()

	if err := s.authz.Authorize(actor, security.PermCreateTransaction); err != nil {
		return nil, err
	}

	cfg := retry.Immediate(referenceAttempts, conflictOn("reference"))
	tx, err := retry.Do(ctx, cfg, s.logger, "create transaction", func(ctx context.Context) (*domain.Transaction, error) {
		now := s.now().UTC()
		tx := &domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      actor.UserID,
			Reference:   domain.NewReference(now, referenceSuffix()),
			Amount:      in.Amount,
			Currency:    in.Currency,
			Provider:    domain.ProviderSWIFT,
			SwiftBIC:    in.SwiftBIC,
			Beneficiary: in.Beneficiary,
			Note:        in.Note,
			Status:      domain.StatusPending,
			CreatedAt:   now,
		}
		if err := s.transactions.Create(ctx, tx); err != nil {
			return nil, err
		}
		return tx, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	metrics.ObserveTransactionCreated()
	logger.FromContext(ctx, s.logger).Info("transaction created",
		slog.String("transaction_id", tx.ID),
		slog.String("reference", tx.Reference),
	)
	s.emit(ctx, domain.EventTransactionCreated, tx, actor.UserID)
	return tx, nil
}

// ListOwn pages through the caller's transactions, newest first.
func (s *TransactionService) ListOwn(ctx context.Context, actor domain.Identity, q validation.TransactionListQuery) (Page[*domain.Transaction], error) {
	if err := s.authz.Authorize(actor, security.PermReadOwnTransactions); err != nil {
		return Page[*domain.Transaction]{}, err
	}
	items, total, err := s.transactions.ListByOwner(ctx, actor.UserID, domain.TransactionFilter{
		Status: q.Status,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		return Page[*domain.Transaction]{}, err
	}
	return Page[*domain.Transaction]{Page: q.Page, Limit: q.Limit, Total: total, Items: items}, nil
}

// GetOwn returns one of the caller's transactions. Another customer's
// transaction is reported as not found.
func (s *TransactionService) GetOwn(ctx context.Context, actor domain.Identity, id string) (*domain.Transaction, error) {
	if err := s.authz.Authorize(actor, security.PermReadOwnTransactions); err != nil {
		return nil, err
	}
	return s.transactions.GetForOwner(ctx, id, actor.UserID)
}

// Queue lists SWIFT transactions in a work-queue status for staff.
func (s *TransactionService) Queue(ctx context.Context, actor domain.Identity, q validation.QueueQuery) (CursorPage[*domain.Transaction], error) {
	return s.listByStatus(ctx, actor, security.PermViewQueue, q)
}

// ListAll is the admin listing across every lifecycle status.
func (s *TransactionService) ListAll(ctx context.Context, actor domain.Identity, q validation.QueueQuery) (CursorPage[*domain.Transaction], error) {
	return s.listByStatus(ctx, actor, security.PermViewAllTransactions, q)
}

func (s *TransactionService) listByStatus(ctx context.Context, actor domain.Identity, perm security.Permission, q validation.QueueQuery) (CursorPage[*domain.Transaction], error) {
	if err := s.authz.Authorize(actor, perm); err != nil {
		return CursorPage[*domain.Transaction]{}, err
	}
	items, err := s.transactions.ListByStatus(ctx, q.Status, q.Cursor, q.Limit)
	if err != nil {
		return CursorPage[*domain.Transaction]{}, err
	}
	return newCursorPage(items, func(tx *domain.Transaction) time.Time { return tx.CreatedAt }), nil
}

// Get returns any SWIFT transaction to staff.
func (s *TransactionService) Get(ctx context.Context, actor domain.Identity, id string) (*domain.Transaction, error) {
	if err := s.authz.Authorize(actor, security.PermViewQueue); err != nil {
		return nil, err
	}
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Provider != domain.ProviderSWIFT {
		return nil, domain.ErrNotFound
	}
	return tx, nil
}

// Verify moves a pending transaction to verified, attributing it to the
// caller. swiftBIC, when set, replaces the stored code. Of any number of
// concurrent calls for one transaction exactly one succeeds; the rest get
// domain.ErrInvalidTransition.
func (s *TransactionService) Verify(ctx context.Context, actor domain.Identity, in validation.VerifyInput) (*domain.Transaction, error) {
	ctx, span := tracing.Start(ctx, "TransactionService.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", in.ID))

	if err := s.authz.Authorize(actor, security.PermVerifyTransaction); err != nil {
		s.audit.LogTransition(ctx, actor.UserID, "verify", in.ID, audit.StatusDenied, "role "+string(actor.Role))
		return nil, err
	}

	tx, err := s.transactions.MarkVerified(ctx, in.ID, actor.UserID, in.SwiftBIC, s.now().UTC())
	if err != nil {
		s.transitionFailed(ctx, actor, "verify", domain.StatusVerified, in.ID, err)
		span.RecordError(err)
		return nil, err
	}

	metrics.ObserveTransition(string(domain.StatusVerified), "success", 1)
	details := ""
	if in.SwiftBIC != "" {
		details = "swiftBic corrected"
	}
	s.audit.LogTransition(ctx, actor.UserID, "verify", tx.ID, audit.StatusSuccess, details)
	s.emit(ctx, domain.EventTransactionVerified, tx, actor.UserID)
	return tx, nil
}

// Submit moves a verified transaction to queued for forwarding.
func (s *TransactionService) Submit(ctx context.Context, actor domain.Identity, id string) (*domain.Transaction, error) {
	ctx, span := tracing.Start(ctx, "TransactionService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := s.authz.Authorize(actor, security.PermSubmitTransaction); err != nil {
		s.audit.LogTransition(ctx, actor.UserID, "submit", id, audit.StatusDenied, "role "+string(actor.Role))
		return nil, err
	}

	tx, err := s.transactions.MarkQueued(ctx, id, actor.UserID, s.now().UTC())
	if err != nil {
		s.transitionFailed(ctx, actor, "submit", domain.StatusQueued, id, err)
		span.RecordError(err)
		return nil, err
	}

	metrics.ObserveTransition(string(domain.StatusQueued), "success", 1)
	s.audit.LogTransition(ctx, actor.UserID, "submit", tx.ID, audit.StatusSuccess, "")
	s.emit(ctx, domain.EventTransactionQueued, tx, actor.UserID)
	return tx, nil
}

// SubmitBulk queues every listed transaction that is currently verified and
// reports aggregate counts only.
func (s *TransactionService) SubmitBulk(ctx context.Context, actor domain.Identity, ids []string) (domain.BulkResult, error) {
	ctx, span := tracing.Start(ctx, "TransactionService.SubmitBulk")
	defer span.End()
	span.SetAttributes(attribute.Int("transaction.count", len(ids)))

	if err := s.authz.Authorize(actor, security.PermSubmitTransaction); err != nil {
		s.audit.LogTransition(ctx, actor.UserID, "submit_bulk", "", audit.StatusDenied, "role "+string(actor.Role))
		return domain.BulkResult{}, err
	}

	at := s.now().UTC()
	result, err := s.transactions.MarkQueuedBulk(ctx, ids, actor.UserID, at)
	if err != nil {
		span.RecordError(err)
		return domain.BulkResult{}, err
	}

	metrics.ObserveTransition(string(domain.StatusQueued), "success", result.Modified)
	metrics.ObserveTransition(string(domain.StatusQueued), "wrong_state", len(ids)-result.Modified)
	s.audit.LogTransition(ctx, actor.UserID, "submit_bulk", "", audit.StatusSuccess,
		bulkDetails(len(ids), result))
	if result.Modified > 0 && s.events != nil {
		s.events.Emit(ctx, domain.TransactionEvent{
			Type:       domain.EventTransactionQueued,
			Status:     domain.StatusQueued,
			ActorID:    actor.UserID,
			OccurredAt: at,
		})
	}
	return result, nil
}

func bulkDetails(requested int, r domain.BulkResult) string {
	return fmt.Sprintf("requested=%d matched=%d modified=%d", requested, r.Matched, r.Modified)
}

func (s *TransactionService) transitionFailed(ctx context.Context, actor domain.Identity, action string, to domain.TransactionStatus, id string, err error) {
	result := "error"
	if errors.Is(err, domain.ErrInvalidTransition) {
		result = "wrong_state"
	}
	metrics.ObserveTransition(string(to), result, 1)
	s.audit.LogTransition(ctx, actor.UserID, action, id, audit.StatusFailed, result)
}

func (s *TransactionService) emit(ctx context.Context, eventType string, tx *domain.Transaction, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, domain.NewTransactionEvent(eventType, tx, actorID, s.now().UTC()))
}
