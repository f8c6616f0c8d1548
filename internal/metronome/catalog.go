package metronome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PrepaidProductName is the catalog product every prepaid commit is booked against.
const PrepaidProductName = "Vocalis Credits"

// maxPages bounds pagination against a provider that never stops returning next_page.
const maxPages = 100

type rateCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Current *struct {
		Name string `json:"name"`
	} `json:"current"`
}

func (p product) displayName() string {
	if p.Current != nil && p.Current.Name != "" {
		return p.Current.Name
	}
	return p.Name
}

type page[T any] struct {
	Data     []T     `json:"data"`
	NextPage *string `json:"next_page"`
}

// listAll walks every page of a list endpoint, stopping early when match returns true.
func listAll[T any](ctx context.Context, c *Client, op, path string, match func(T) bool) (*T, error) {
	var cursor string
	for range maxPages {
		var query url.Values
		if cursor != "" {
			query = url.Values{"next_page": {cursor}}
		}

		var resp page[T]
		if err := c.do(ctx, op, http.MethodPost, path, query, map[string]any{}, &resp); err != nil {
			return nil, err
		}
		for i := range resp.Data {
			if match(resp.Data[i]) {
				return &resp.Data[i], nil
			}
		}
		if resp.NextPage == nil || *resp.NextPage == "" {
			return nil, nil
		}
		cursor = *resp.NextPage
	}
	return nil, fmt.Errorf("%s: exceeded %d pages", op, maxPages)
}

// ResolveRateCard finds a rate card by case-insensitive name.
// Returns ErrNotFound when no card matches; the caller decides whether that is fatal.
func (c *Client) ResolveRateCard(ctx context.Context, name string) (string, error) {
	want := strings.ToLower(strings.TrimSpace(name))

	card, err := listAll(ctx, c, "list_rate_cards", "/v1/contract-pricing/rate-cards/list", func(rc rateCard) bool {
		return strings.ToLower(strings.TrimSpace(rc.Name)) == want
	})
	if err != nil {
		return "", err
	}
	if card == nil {
		return "", fmt.Errorf("rate card %q: %w", name, ErrNotFound)
	}
	return card.ID, nil
}

// FindPrepaidProduct looks up the prepaid credits product without creating it.
func (c *Client) FindPrepaidProduct(ctx context.Context) (string, error) {
	p, err := listAll(ctx, c, "list_products", "/v1/contract-pricing/products/list", func(p product) bool {
		return p.displayName() == PrepaidProductName
	})
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("product %q: %w", PrepaidProductName, ErrNotFound)
	}
	return p.ID, nil
}

// EnsurePrepaidProduct returns the prepaid credits product, creating it if absent.
// Uniqueness is by name only; two concurrent callers can both create it.
func (c *Client) EnsurePrepaidProduct(ctx context.Context) (string, error) {
	id, err := c.FindPrepaidProduct(ctx)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	req := map[string]any{
		"name": PrepaidProductName,
		"type": "FIXED",
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, "create_product", http.MethodPost, "/v1/contract-pricing/products/create", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("create_product: %w: response missing product id", ErrProviderRejected)
	}

	c.logger.Info("prepaid product created", "product_id", resp.Data.ID)
	return resp.Data.ID, nil
}
