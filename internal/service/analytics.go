// Package service wires task mutations to their downstream consumers:
// the message bus, the live-update hub and the analytics collector.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iliyamo/task-tracker/internal/queue"
)

// analyticsTimeout bounds the synchronous forward so a slow collector
// cannot pile up request handlers.
const analyticsTimeout = 5 * time.Second

// AnalyticsClient forwards task snapshots to the external analytics
// collector. Failures are returned to the dispatcher, which logs and
// swallows them; they never reach the caller of the task mutation.
type AnalyticsClient struct {
	url  string
	http *http.Client
}

func NewAnalyticsClient(url string) *AnalyticsClient {
	return &AnalyticsClient{
		url:  url,
		http: &http.Client{Timeout: analyticsTimeout},
	}
}

// Forward POSTs the snapshot as JSON to the collector's log endpoint.
func (a *AnalyticsClient) Forward(ctx context.Context, snap queue.TaskSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, analyticsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analytics collector returned %s", resp.Status)
	}
	return nil
}
