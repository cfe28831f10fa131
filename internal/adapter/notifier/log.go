package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
)

// Log writes events to the structured log. Used in local development and as
// a stand-in when no broker is configured.
type Log struct {
	log *zap.Logger
}

// NewLog creates a logging notifier.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

// Notify logs the event.
func (l *Log) Notify(_ context.Context, event domain.Event) {
	fields := []zap.Field{
		zap.String("owner_id", event.OwnerID.String()),
		zap.Time("occurred_at", event.OccurredAt),
	}
	for k, v := range event.Payload {
		fields = append(fields, zap.String(k, v))
	}
	l.log.Info("event: "+string(event.Type), fields...)
}
