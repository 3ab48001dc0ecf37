package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
)

// Notice describes a finished run for chat notifications
type Notice struct {
	TaskName string
	Run      *db.Run
}

func (n Notice) duration() string {
	if n.Run.EndedAt == nil {
		return "running"
	}
	return n.Run.EndedAt.Sub(n.Run.StartedAt).Round(time.Millisecond).String()
}

func newClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func post(ctx context.Context, client *http.Client, url string, payload any, header http.Header) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
