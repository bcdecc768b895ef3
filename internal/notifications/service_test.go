package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sheetmill/internal/config"
	"sheetmill/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventConversionCompleted, notifications.Payload{"sourceRef": "example.xlsb"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "conversion completed",
			event: notifications.EventConversionCompleted,
			payload: notifications.Payload{
				"sourceRef": "uploads/report.xlsb",
				"output":    "/srv/data/ingests/42.jsonl",
			},
			expectTitle:   "Sheetmill - Conversion Complete",
			expectMessage: "✅ Converted: uploads/report.xlsb\nOutput: /srv/data/ingests/42.jsonl",
			expectTags:    "sheetmill,convert,completed",
		},
		{
			name:  "conversion completed without output path",
			event: notifications.EventConversionCompleted,
			payload: notifications.Payload{
				"sourceRef": "uploads/report.xlsb",
			},
			expectTitle:   "Sheetmill - Conversion Complete",
			expectMessage: "✅ Converted: uploads/report.xlsb",
			expectTags:    "sheetmill,convert,completed",
		},
		{
			name:  "conversion failed",
			event: notifications.EventConversionFailed,
			payload: notifications.Payload{
				"sourceRef": "uploads/broken.xlsb",
				"error":     "converter exit 2: sheet index 5 out of range (1..1)",
			},
			expectTitle:    "Sheetmill - Conversion Failed",
			expectMessage:  "❌ Conversion failed: uploads/broken.xlsb\nReason: converter exit 2: sheet index 5 out of range (1..1)",
			expectTags:     "sheetmill,convert,failed",
			expectPriority: "high",
		},
		{
			name:  "daemon started",
			event: notifications.EventDaemonStarted,
			payload: notifications.Payload{
				"pending": "3",
			},
			expectTitle:   "Sheetmill - Started",
			expectMessage: "Conversion daemon started (3 jobs pending)",
			expectTags:    "sheetmill,daemon,started",
		},
		{
			name:          "daemon stopped",
			event:         notifications.EventDaemonStopped,
			payload:       nil,
			expectTitle:   "Sheetmill - Stopped",
			expectMessage: "Conversion daemon stopped",
			expectTags:    "sheetmill,daemon,stopped",
		},
		{
			name:           "test notification",
			event:          notifications.EventTest,
			payload:        nil,
			expectTitle:    "Sheetmill - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "sheetmill,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Conversions = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Conversions = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventConversionCompleted,
		notifications.EventConversionFailed,
		notifications.Event("unknown"),
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
	if got := err.Error(); got != "ntfy returned 403: topic rejected" {
		t.Fatalf("unexpected error: %q", got)
	}
}
