package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/palletworks/palletwatch/internal/db"
	"github.com/palletworks/palletwatch/internal/monitoring"
	"github.com/palletworks/palletwatch/internal/track"
)

// DeliveryLog persists what was sent and when, and answers the resend-window
// question. Implemented by db.DB.
type DeliveryLog interface {
	LastNotifiedAt(objectID string) (*time.Time, error)
	RecordNotification(n db.Notification) error
}

// Broadcaster pushes events to connected dashboards. Implemented by the
// websocket hub.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Dispatcher turns the engine's overtime events into delivered alerts. The
// engine reports an event every cycle an object stays over threshold; the
// dispatcher spaces actual deliveries with a per-object resend window and
// logs each attempt.
type Dispatcher struct {
	log      DeliveryLog
	notifier Notifier
	hub      Broadcaster

	// ResendWindow is the minimum spacing between delivered alerts for
	// one object. Zero delivers every event.
	ResendWindow time.Duration
}

// NewDispatcher builds a dispatcher. hub may be nil when no live push is
// wanted.
func NewDispatcher(log DeliveryLog, notifier Notifier, hub Broadcaster, resendWindow time.Duration) *Dispatcher {
	return &Dispatcher{log: log, notifier: notifier, hub: hub, ResendWindow: resendWindow}
}

// Dispatch processes one cycle's overtime events and returns how many alerts
// were delivered. Every event is broadcast to the hub; delivery through the
// notifier is gated by the resend window. A failure on one event never
// blocks the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, events []track.OvertimeEvent, now time.Time) int {
	delivered := 0
	for _, ev := range events {
		a := Alert{
			ObjectID:     ev.ObjectID,
			DisplayName:  ev.DisplayName,
			Class:        ev.Class,
			DwellMinutes: ev.Duration.Minutes(),
			Continuation: ev.Continuation,
			Message:      formatMessage(ev),
			OccurredAt:   now,
		}

		if d.hub != nil {
			d.hub.Broadcast(a)
		}

		last, err := d.log.LastNotifiedAt(ev.ObjectID)
		if err != nil {
			monitoring.Logf("alert: last notified for %s: %v", ev.DisplayName, err)
			continue
		}
		if last != nil && now.Sub(*last) < d.ResendWindow {
			continue
		}

		err = d.notifier.Notify(ctx, a)
		if err != nil {
			monitoring.Logf("alert: deliver %s for %s: %v", d.notifier.Name(), ev.DisplayName, err)
			monitoring.AlertsSentTotal.WithLabelValues("error").Inc()
		} else {
			delivered++
			monitoring.AlertsSentTotal.WithLabelValues("ok").Inc()
		}

		if logErr := d.log.RecordNotification(db.Notification{
			ObjectID:   ev.ObjectID,
			NotifyType: d.notifier.Name(),
			Message:    a.Message,
			SentAt:     now,
			Success:    err == nil,
		}); logErr != nil {
			monitoring.Logf("alert: record notification for %s: %v", ev.DisplayName, logErr)
		}
	}
	return delivered
}

func formatMessage(ev track.OvertimeEvent) string {
	minutes := int(ev.Duration.Minutes())
	if ev.Continuation {
		return fmt.Sprintf("%s is still over the dwell threshold after reappearing (%d min total)", ev.DisplayName, minutes)
	}
	return fmt.Sprintf("%s has exceeded the dwell threshold (%d min)", ev.DisplayName, minutes)
}
