package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sheetmill/internal/config"
)

const userAgent = "Sheetmill/0.1.0"

// Event identifies a notification-worthy moment in the conversion pipeline.
type Event string

const (
	EventConversionCompleted Event = "conversion_completed"
	EventConversionFailed    Event = "conversion_failed"
	EventDaemonStarted       Event = "daemon_started"
	EventDaemonStopped       Event = "daemon_stopped"
	EventTest                Event = "test"
)

// Payload carries event details as loosely typed key/value pairs. Keys are
// event specific; senders and formatters agree on "sourceRef", "output",
// "error", and "context".
type Payload map[string]string

func (p Payload) get(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Service defines the notification surface exposed to worker components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		conversions: cfg.Notifications.Conversions,
		errors:      cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	conversions bool
	errors      bool
}

// Publish formats and delivers the event. Events disabled by configuration
// return nil without touching the network.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventConversionCompleted:
		if !n.conversions {
			return nil
		}
		body := fmt.Sprintf("✅ Converted: %s", payload.get("sourceRef"))
		if output := payload.get("output"); output != "" {
			body = fmt.Sprintf("%s\nOutput: %s", body, output)
		}
		return n.send(ctx, message{
			title: "Sheetmill - Conversion Complete",
			body:  body,
			tags:  []string{"sheetmill", "convert", "completed"},
		})
	case EventConversionFailed:
		if !n.errors {
			return nil
		}
		body := fmt.Sprintf("❌ Conversion failed: %s", payload.get("sourceRef"))
		if reason := payload.get("error"); reason != "" {
			body = fmt.Sprintf("%s\nReason: %s", body, reason)
		}
		return n.send(ctx, message{
			title:    "Sheetmill - Conversion Failed",
			body:     body,
			tags:     []string{"sheetmill", "convert", "failed"},
			priority: "high",
		})
	case EventDaemonStarted:
		body := "Conversion daemon started"
		if pending := payload.get("pending"); pending != "" {
			body = fmt.Sprintf("%s (%s jobs pending)", body, pending)
		}
		return n.send(ctx, message{
			title: "Sheetmill - Started",
			body:  body,
			tags:  []string{"sheetmill", "daemon", "started"},
		})
	case EventDaemonStopped:
		return n.send(ctx, message{
			title: "Sheetmill - Stopped",
			body:  "Conversion daemon stopped",
			tags:  []string{"sheetmill", "daemon", "stopped"},
		})
	case EventTest:
		return n.send(ctx, message{
			title:    "Sheetmill - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"sheetmill", "test"},
			priority: "low",
		})
	default:
		return nil
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
