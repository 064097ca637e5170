// Package alert delivers overtime notifications produced by the tracking
// engine. Delivery transports sit behind the Notifier interface; the
// Dispatcher decides which events actually go out.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/palletworks/palletwatch/internal/httputil"
	"github.com/palletworks/palletwatch/internal/monitoring"
	"github.com/palletworks/palletwatch/internal/track"
)

// Alert is one outbound overtime notification.
type Alert struct {
	ObjectID     string            `json:"object_id"`
	DisplayName  string            `json:"display_name"`
	Class        track.ObjectClass `json:"class"`
	DwellMinutes float64           `json:"dwell_minutes"`
	Continuation bool              `json:"continuation"`
	Message      string            `json:"message"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// Notifier delivers one alert to an external channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// WebhookNotifier POSTs alerts as JSON to a fixed URL.
type WebhookNotifier struct {
	URL    string
	Client httputil.HTTPClient
}

// NewWebhookNotifier builds a webhook notifier; a nil client gets the
// standard one.
func NewWebhookNotifier(url string, client httputil.HTTPClient) *WebhookNotifier {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &WebhookNotifier{URL: url, Client: client}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify posts the alert and treats any non-2xx status as failure.
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert for %s: %w", a.DisplayName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert for %s: %w", a.DisplayName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d for %s", resp.StatusCode, a.DisplayName)
	}
	return nil
}

// LogNotifier writes alerts to the service log. Used when no webhook is
// configured.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, a Alert) error {
	monitoring.Logf("ALERT %s", a.Message)
	return nil
}
