package log

import (
	"context"
	"log/slog"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// SlogAdapter writes HAL events to an slog.Logger.
// Useful for development when you want to see HAL traffic in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a SlogAdapter that logs at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}

	switch {
	case event.Property != nil:
		attrs = append(attrs,
			slog.String("kind", event.Property.Kind.String()),
			slog.Int("count", event.Property.Count),
		)
		if len(event.Property.Values) > 0 {
			attrs = append(attrs, slog.String("first_prop", vehicle.PropertyName(event.Property.Values[0].Prop)))
		}
	case event.Subscription != nil:
		attrs = append(attrs, slog.String("action", event.Subscription.Action.String()))
		if event.Subscription.PropID != 0 {
			attrs = append(attrs, slog.String("prop", vehicle.PropertyName(event.Subscription.PropID)))
		}
		for _, o := range event.Subscription.Options {
			attrs = append(attrs, slog.String("options", o.String()))
		}
	case event.Request != nil:
		attrs = append(attrs,
			slog.String("request", event.Request.Kind.String()),
			slog.Int("ids", len(event.Request.RequestIDs)),
		)
		if event.Request.Status != nil {
			attrs = append(attrs, slog.String("status", event.Request.Status.String()))
		}
		if event.Request.TimedOut {
			attrs = append(attrs, slog.Bool("timed_out", true))
		}
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
		if event.Error.Code != nil {
			attrs = append(attrs, slog.String("error_code", event.Error.Code.String()))
		}
	}

	a.logger.LogAttrs(context.Background(), a.level, "vhal", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
