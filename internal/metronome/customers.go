package metronome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// IngestAliasPrefix marks the ingest alias that carries the customer's email.
// Metronome customers have no email field.
const IngestAliasPrefix = "vocalis_"

// Customer is a Metronome customer record.
type Customer struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	IngestAliases []string `json:"ingest_aliases"`
}

// Email recovers the email address from the customer's ingest aliases.
func (c *Customer) Email() string {
	for _, alias := range c.IngestAliases {
		if strings.HasPrefix(alias, IngestAliasPrefix) {
			return strings.TrimPrefix(alias, IngestAliasPrefix)
		}
	}
	return ""
}

type customerEnvelope struct {
	Data Customer `json:"data"`
}

// CreateCustomer creates a customer with the email embedded in an ingest alias.
func (c *Client) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	req := map[string]any{
		"name":           name,
		"ingest_aliases": []string{IngestAliasPrefix + strings.ToLower(strings.TrimSpace(email))},
	}

	var resp customerEnvelope
	if err := c.do(ctx, "create_customer", http.MethodPost, "/v1/customers", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("create_customer: %w: response missing customer id", ErrProviderRejected)
	}

	c.logger.Info("customer created", "customer_id", resp.Data.ID)
	return resp.Data.ID, nil
}

// GetCustomer fetches a customer by ID. Returns ErrNotFound on 404.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var resp customerEnvelope
	path := "/v1/customers/" + url.PathEscape(customerID)
	if err := c.do(ctx, "get_customer", http.MethodGet, path, nil, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
		}
		return nil, err
	}
	return &resp.Data, nil
}
