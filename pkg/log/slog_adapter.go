package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("correlation_id", event.CorrelationID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.SubscriptionID != "" {
		attrs = append(attrs, slog.String("subscription_id", event.SubscriptionID))
	}
	if event.EntityID != "" {
		attrs = append(attrs, slog.String("entity_id", event.EntityID))
	}

	switch {
	case event.HTTP != nil:
		if event.HTTP.Method != "" {
			attrs = append(attrs, slog.String("method", event.HTTP.Method))
		}
		if event.HTTP.Path != "" {
			attrs = append(attrs, slog.String("path", event.HTTP.Path))
		}
		if event.HTTP.StatusCode != 0 {
			attrs = append(attrs, slog.Int("status", event.HTTP.StatusCode))
		}
		attrs = append(attrs, slog.Int("size", event.HTTP.Size))
		if event.HTTP.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.HTTP.Duration))
		}
	case event.Notification != nil:
		attrs = append(attrs,
			slog.Int("deltas", event.Notification.Deltas),
			slog.Any("entities", event.Notification.EntityIDs),
		)
	case event.Delivery != nil:
		attrs = append(attrs,
			slog.String("target", event.Delivery.TargetType),
			slog.Any("changed", event.Delivery.Changed),
			slog.Bool("full_entity", event.Delivery.FullEntity),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
