package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthServiceClient validates end-user access tokens against the auth provider.
// Used where the gateway cannot inject identity headers (SSE streams).
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type ValidateResponse struct {
	UserID   string   `json:"user_id"`
	DeviceID string   `json:"device_id"`
	Roles    []string `json:"roles"`
}

func NewAuthServiceClient(baseURL, token string, client *http.Client) *AuthServiceClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AuthServiceClient{BaseURL: baseURL, Token: token, Client: client}
}

// ValidateToken calls POST {BaseURL}/auth/validate.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*ValidateResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/validate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth validation failed: %d %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if out.UserID == "" {
		return nil, fmt.Errorf("auth validation returned no user")
	}
	return &out, nil
}

// Validate adapts ValidateToken to the SSE middleware's validator.
func (c *AuthServiceClient) Validate(ctx context.Context, accessToken, deviceID string) (string, []string, error) {
	resp, err := c.ValidateToken(ctx, accessToken, deviceID)
	if err != nil {
		return "", nil, err
	}
	return resp.UserID, resp.Roles, nil
}
