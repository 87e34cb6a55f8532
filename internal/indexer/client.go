// Package indexer reads delegation and allowlist state from the off-chain
// indexer. The indexer derives its state from chain events; this client
// treats it as the single source of truth for what is currently authorized.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/kiwinews/delegation-api/internal/eligibility"
	"github.com/kiwinews/delegation-api/internal/logger"
)

// DelegationRecord is one owner→delegate edge as reported by the indexer.
type DelegationRecord struct {
	Owner      string `json:"owner"`
	Delegate   string `json:"delegate"`
	Authorized bool   `json:"authorized"`
}

type listResponse struct {
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

// Client is a retrying HTTP client for the indexer's read endpoints.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  uint64
	maxInterval time.Duration
	logger      *zap.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithMaxRetries bounds per-request retry attempts.
func WithMaxRetries(n uint64) ClientOption {
	return func(client *Client) { client.maxRetries = n }
}

// NewClient creates an indexer client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		maxRetries:  3,
		maxInterval: 5 * time.Second,
		logger:      logger.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delegations fetches the current delegation map keyed by delegate address.
func (c *Client) Delegations(ctx context.Context) (eligibility.DelegationMap, error) {
	raw, err := c.get(ctx, "/api/v1/delegations")
	if err != nil {
		return nil, err
	}
	var records []DelegationRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode delegations: %w", err)
	}

	delegations := make(eligibility.DelegationMap, len(records))
	for _, record := range records {
		if !common.IsHexAddress(record.Owner) || !common.IsHexAddress(record.Delegate) {
			c.logger.Warn("Skipping malformed delegation record",
				zap.String("owner", record.Owner),
				zap.String("delegate", record.Delegate),
			)
			continue
		}
		delegations[common.HexToAddress(record.Delegate)] = eligibility.Record{
			Owner:      common.HexToAddress(record.Owner),
			Authorized: record.Authorized,
		}
	}
	return delegations, nil
}

// Allowlist fetches the owner addresses with access rights.
func (c *Client) Allowlist(ctx context.Context) ([]common.Address, error) {
	raw, err := c.get(ctx, "/api/v1/allowlist")
	if err != nil {
		return nil, err
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode allowlist: %w", err)
	}

	allowlist := make([]common.Address, 0, len(entries))
	for _, entry := range entries {
		if !common.IsHexAddress(entry) {
			c.logger.Warn("Skipping malformed allowlist entry", zap.String("address", entry))
			continue
		}
		allowlist = append(allowlist, common.HexToAddress(entry))
	}
	return allowlist, nil
}

// get performs a GET with exponential-backoff retries. Server-side and
// transport failures retry; client errors are permanent.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	var body json.RawMessage

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = c.maxInterval

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("indexer returned status %d for %s", resp.StatusCode, path)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("indexer returned status %d for %s", resp.StatusCode, path))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var wrapped listResponse
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode indexer response: %w", err))
		}
		body = wrapped.Data
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("indexer request %s failed: %w", path, err)
	}
	return body, nil
}
