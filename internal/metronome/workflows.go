package metronome

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// ReleaseResult reports the provider's answer to a workflow release.
type ReleaseResult struct {
	WorkflowID      string
	Outcome         models.ReleaseOutcome
	AlreadyResolved bool // another caller settled the workflow first
}

// ReleaseThresholdWorkflow completes a payment-gate handshake.
// A rejection saying the workflow was already settled is returned as success
// with AlreadyResolved set.
func (c *Client) ReleaseThresholdWorkflow(ctx context.Context, workflowID string, outcome models.ReleaseOutcome) (ReleaseResult, error) {
	result := ReleaseResult{WorkflowID: workflowID, Outcome: outcome}

	if workflowID == "" {
		return result, fmt.Errorf("%w: workflow id is required", ErrReleaseFailed)
	}
	if outcome != models.OutcomePaid && outcome != models.OutcomeFailed {
		return result, fmt.Errorf("%w: invalid outcome %q", ErrReleaseFailed, outcome)
	}

	req := map[string]any{
		"workflow_id": workflowID,
		"outcome":     string(outcome),
	}
	err := c.do(ctx, "release_workflow", http.MethodPost, "/v1/contracts/commits/threshold-billing/release", nil, req, nil)
	if err == nil {
		return result, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && isAlreadyResolved(apiErr) {
		c.logger.Info("workflow already resolved",
			"workflow_id", workflowID,
			"outcome", outcome,
			"status", apiErr.StatusCode,
		)
		result.AlreadyResolved = true
		return result, nil
	}
	return result, fmt.Errorf("%w: %w", ErrReleaseFailed, err)
}
