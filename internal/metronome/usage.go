package metronome

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// IngestUsageEvent submits one usage record for metering.
func (c *Client) IngestUsageEvent(ctx context.Context, event models.UsageEvent) error {
	if event.TransactionID == "" || event.CustomerID == "" || event.EventType == "" {
		return fmt.Errorf("%w: transaction_id, customer_id and event_type are required", ErrIngestFailed)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	body := []map[string]any{{
		"transaction_id": event.TransactionID,
		"customer_id":    event.CustomerID,
		"event_type":     event.EventType,
		"timestamp":      ts.UTC().Format(time.RFC3339),
		"properties":     event.Properties,
	}}

	if err := c.do(ctx, "ingest", http.MethodPost, "/v1/ingest", nil, body, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrIngestFailed, err)
	}
	return nil
}
