// Package notify sends fire-and-forget operator notifications over a signed webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Header names for notification requests.
const (
	HeaderSignature      = "X-Tracker-Signature"
	HeaderTimestamp      = "X-Tracker-Timestamp"
	HeaderNotificationID = "X-Tracker-Notification-Id"
)

// EventDomainDeactivated is sent when the health monitor disables a redirect domain.
const EventDomainDeactivated = "redirect_domain.deactivated"

// SendTimeout bounds a single delivery.
const SendTimeout = 5 * time.Second

// Event is the JSON body of a notification.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Notifier posts signed events to a single webhook URL.
// An empty URL turns every send into a no-op.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Notifier.
func New(url, secret string, logger *slog.Logger) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: SendTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "notify"),
	}
}

// DomainDeactivated notifies operators that a redirect domain was disabled.
func (n *Notifier) DomainDeactivated(domain string, score int) {
	n.SendAsync(EventDomainDeactivated, map[string]any{
		"domain":       domain,
		"health_score": score,
	})
}

// SendAsync delivers an event on a background goroutine. Failures are logged only.
func (n *Notifier) SendAsync(eventType string, data map[string]any) {
	if n.url == "" {
		return
	}

	event := Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
		defer cancel()

		if err := n.Send(ctx, event); err != nil {
			n.logger.Warn("notification failed",
				"notification_id", event.ID,
				"type", event.Type,
				"error", err,
			)
			return
		}
		n.logger.Info("notification sent", "notification_id", event.ID, "type", event.Type)
	}()
}

// Send delivers one event synchronously.
func (n *Notifier) Send(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	timestamp := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tracker-Notify/1.0")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderNotificationID, event.ID)
	if n.secret != "" {
		req.Header.Set(HeaderSignature, GenerateSignature(n.secret, timestamp, payload))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Shutdown waits for pending notifications.
func (n *Notifier) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
