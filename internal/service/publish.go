package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/middleware"
)

// publish is fire-and-log: a failed publish never fails the write that
// produced the event.
func publish(ctx context.Context, p Publisher, logger *zap.Logger, event domain.InventoryEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Error("Failed to publish event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}

func requestID(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}
