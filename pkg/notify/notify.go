// Package notify publishes events for newly created waivers. Delivery
// is best effort: the waiver is already committed when a notifier runs,
// so failures are logged and never surfaced to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/releng/waiverd/pkg/api"
)

// TopicWaiverNew is the topic attached to new-waiver messages.
const TopicWaiverNew = "waiverd.waiver.new"

// Notifier publishes a message for a newly created waiver.
type Notifier interface {
	WaiverCreated(ctx context.Context, w *api.Waiver) error
}

// Message is the envelope posted for each new waiver.
type Message struct {
	ID    string      `json:"id"`
	Topic string      `json:"topic"`
	Body  *api.Waiver `json:"body"`
}

// LogNotifier records new waivers in the service log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs each new waiver.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) WaiverCreated(_ context.Context, w *api.Waiver) error {
	n.logger.Info("waiver created",
		"topic", TopicWaiverNew,
		"waiver_id", w.ID,
		"testcase", w.Testcase,
		"username", w.Username,
		"waived", w.Waived,
	)
	return nil
}

// HTTPNotifier posts new-waiver messages to a webhook endpoint.
type HTTPNotifier struct {
	httpClient *http.Client
	url        string
}

// NewHTTPNotifier creates a webhook notifier. A zero timeout defaults
// to 10 seconds.
func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

func (n *HTTPNotifier) WaiverCreated(ctx context.Context, w *api.Waiver) error {
	msg := Message{
		ID:    uuid.NewString(),
		Topic: TopicWaiverNew,
		Body:  w,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling waiver message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting waiver message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
