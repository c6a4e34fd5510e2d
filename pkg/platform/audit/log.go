package audit

import (
	"context"
	"log/slog"

	"consentd/pkg/requestcontext"
)

// LogAudit writes an audit line to the structured logger and emits the event to
// the publisher when one is configured. Publisher failures are logged, never
// returned: audit delivery does not decide the outcome of a request.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}

	args := append(attrs, "event", event.Action, "category", string(event.Category), "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
