// Package directory is the HTTP client for the profile directory service,
// which owns maid profiles. This service only reads the slice it needs.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"unlock-ledger/config"
	"unlock-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// Client implements ports.ProfileDirectory against the directory's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a directory client.
func New(cfg config.DirectoryConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type profilePayload struct {
	ID          uuid.UUID `json:"id"`
	Nationality string    `json:"nationality"`
	OfficeID    uuid.UUID `json:"office_id"`
}

// GetProfile fetches one profile. Returns nil, nil when the directory does
// not know the profile (deleted or never existed).
func (c *Client) GetProfile(ctx context.Context, profileID uuid.UUID) (*ports.Profile, error) {
	url := fmt.Sprintf("%s/internal/v1/profiles/%s", c.baseURL, profileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("directory returned %d for profile %s", resp.StatusCode, profileID)
	}

	var payload profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}

	return &ports.Profile{
		ID:          payload.ID,
		Nationality: payload.Nationality,
		OfficeID:    payload.OfficeID,
	}, nil
}
