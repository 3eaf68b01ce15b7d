package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notification levels
const (
	NotifyInfo     = "info"
	NotifyWarning  = "warning"
	NotifyCritical = "critical"
)

// Notification is the payload sent to the alerting collaborator
type Notification struct {
	Level   string         `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Service string         `json:"service,omitempty"`
	At      time.Time      `json:"at"`
	Details map[string]any `json:"details,omitempty"`
}

// Notifier delivers notifications to operators. Implementations must not
// block beyond the supplied context.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the process log
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("NOTIFY [%s] %s: %s (service=%s)", n.Level, n.Title, n.Message, n.Service)
	return nil
}

// WebhookNotifier posts notifications as JSON to an HTTP endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier targeting the given URL
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify implements Notifier
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
