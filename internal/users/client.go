// Package users talks to the external auth/account service. Account
// management is not part of this service; checkout only needs a contact
// email for the confirmation mail.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Directory interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Directory = (*Client)(nil)

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: authServiceURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type userResponse struct {
	Email string `json:"email"`
}

func (c *Client) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/internal/users/%s", c.baseURL, userID),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user lookup failed with status: %d", resp.StatusCode)
	}

	var result userResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Email, nil
}
