package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/google/uuid"
)

// QuotaClient talks to the external billing authority. Any transport or
// non-2xx failure aborts the triggering request; no partial charge happens
// before a successful answer.
type QuotaClient struct {
	baseURL string
	client  *http.Client
}

func NewQuotaClient(baseURL string, timeout time.Duration) *QuotaClient {
	return &QuotaClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *QuotaClient) CanSpend(ctx context.Context, userID uuid.UUID, n int) (bool, error) {
	url := fmt.Sprintf("%s/v1/users/%s/can-spend?n=%d", c.baseURL, userID, n)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("QuotaClient - CanSpend - http.NewRequestWithContext: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("QuotaClient - CanSpend - c.client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("QuotaClient - CanSpend - unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("QuotaClient - CanSpend - json.Decode: %w", err)
	}

	return body.Allowed, nil
}

func (c *QuotaClient) Refund(ctx context.Context, userID uuid.UUID, n int) error {
	url := fmt.Sprintf("%s/v1/users/%s/refund", c.baseURL, userID)

	payload, err := json.Marshal(map[string]int{"n": n})
	if err != nil {
		return fmt.Errorf("QuotaClient - Refund - json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("QuotaClient - Refund - http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("QuotaClient - Refund - c.client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("QuotaClient - Refund - unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (c *QuotaClient) Tier(ctx context.Context, userID uuid.UUID) (entity.Tier, error) {
	url := fmt.Sprintf("%s/v1/users/%s/tier", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("QuotaClient - Tier - http.NewRequestWithContext: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("QuotaClient - Tier - c.client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("QuotaClient - Tier - unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Tier entity.Tier `json:"tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("QuotaClient - Tier - json.Decode: %w", err)
	}

	return body.Tier, nil
}
