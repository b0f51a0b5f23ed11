package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
)

// Outcome values recorded on audit entries.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusFailed  = "failed"
)

type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{logger: l, now: time.Now}
}

// LogAction writes one audit record for a privileged action.
func (al *Logger) LogAction(ctx context.Context, actorID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("actor_id", actorID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", logger.RequestID(ctx)),
		slog.Time("timestamp", al.now().UTC()),
	)
}

func (al *Logger) LogTransition(ctx context.Context, actorID, action, txID, status, details string) {
	al.LogAction(ctx, actorID, action, "transaction", txID, status, details)
}

func (al *Logger) LogEmployeeChange(ctx context.Context, actorID, action, employeeID, status, details string) {
	al.LogAction(ctx, actorID, action, "employee", employeeID, status, details)
}

func (al *Logger) LogLogin(ctx context.Context, userID, status, details string) {
	al.LogAction(ctx, userID, "login", "session", userID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, actorID, reason string) {
	al.LogAction(ctx, actorID, "access_denied", "api", "", StatusDenied, reason)
}
