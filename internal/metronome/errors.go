package metronome

import (
	"errors"
	"fmt"
	"strings"
)

// Gateway errors. Callers match with errors.Is.
var (
	ErrProviderUnavailable    = errors.New("billing provider unavailable")
	ErrProviderRejected       = errors.New("billing provider rejected request")
	ErrNotFound               = errors.New("not found")
	ErrContractCreationFailed = errors.New("contract creation failed")
	ErrNoBalanceData          = errors.New("no balance data")
	ErrIngestFailed           = errors.New("usage ingest failed")
	ErrReleaseFailed          = errors.New("threshold workflow release failed")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrProviderRejected) match.
func (e *APIError) Unwrap() error {
	return ErrProviderRejected
}

// Structured codes the release endpoint uses for a workflow that has
// already left the COMMITTING state.
var alreadyResolvedCodes = map[string]bool{
	"WORKFLOW_ALREADY_RESOLVED": true,
	"ALREADY_COMMITTED":         true,
	"INVALID_WORKFLOW_STATE":    true,
}

// Message fragments seen when no structured code is returned.
var alreadyResolvedMessages = []string{
	"already in state committed",
	"not in committing state",
	"already resolved",
}

// isAlreadyResolved reports whether a release rejection means another
// caller already settled the workflow.
func isAlreadyResolved(e *APIError) bool {
	if e == nil {
		return false
	}
	if e.Code != "" {
		if alreadyResolvedCodes[strings.ToUpper(e.Code)] {
			return true
		}
	}
	msg := strings.ToLower(e.Message)
	for _, fragment := range alreadyResolvedMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
