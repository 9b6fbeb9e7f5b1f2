package service

import (
	"context"

	"eshop/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	args := append(attributes,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.WarnContext(ctx, "authentication failed", args...)
	s.metrics.incLogin("failure")
}

// bestEffort logs a failed side effect without failing the request.
func (s *Service) bestEffort(ctx context.Context, what string, err error, attributes ...any) {
	if err == nil {
		return
	}
	args := append(attributes,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.WarnContext(ctx, what+" failed", args...)
}
