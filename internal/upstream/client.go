// Package upstream is the JSON client for the Baantlo backend API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIPrefix is the versioned path every backend route lives under
const APIPrefix = "/api/v1"

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 64 << 10

// Client represents an HTTP client for the Baantlo API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client for baseURL (scheme://host[:port])
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the backend origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	target := c.baseURL + APIPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", nil, LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns the next verification action
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh rotates the refresh token and issues a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revoke invalidates a refresh token
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	q := url.Values{"refresh_token": {refreshToken}}
	return c.do(ctx, http.MethodPost, "/auth/revoke", "", q, nil, nil)
}

// ForgotPassword asks the backend to send a reset link
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", nil, map[string]string{"email": email}, nil)
}

// ValidateResetToken checks a reset token without consuming it
func (c *Client) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/validate-reset-token", "", nil, map[string]string{"token": token}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// ResetPassword sets a new password using a reset token
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", nil, body, nil)
}

// VerifyEmail consumes an email verification token
func (c *Client) VerifyEmail(ctx context.Context, token string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify-email", "", nil, map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Permissions returns the public permissions manifest
func (c *Client) Permissions(ctx context.Context) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/auth/permissions", "", nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DashboardStats returns the combined dashboard payload for the user
func (c *Client) DashboardStats(ctx context.Context, token string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", token, nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AdminDashboard returns platform wide statistics (admin only)
func (c *Client) AdminDashboard(ctx context.Context, token string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/admin/dashboard", token, nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListGroups returns the groups the user is an active member of
func (c *Client) ListGroups(ctx context.Context, token string) (*GroupList, error) {
	var list GroupList
	if err := c.do(ctx, http.MethodGet, "/groups", token, nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetGroup returns a single group with members
func (c *Client) GetGroup(ctx context.Context, token, groupID string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID), token, nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListExpenses returns one page of the user's expenses
func (c *Client) ListExpenses(ctx context.Context, token string, page int) (*ExpenseList, error) {
	var list ExpenseList
	if err := c.do(ctx, http.MethodGet, "/expenses", token, pageQuery(page), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListSettlements returns one page of the user's settlements
func (c *Client) ListSettlements(ctx context.Context, token string, page int) (*SettlementList, error) {
	var list SettlementList
	if err := c.do(ctx, http.MethodGet, "/settlements", token, pageQuery(page), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// IncomingGroupInvites returns pending group invites addressed to the user
func (c *Client) IncomingGroupInvites(ctx context.Context, token string) ([]GroupInvite, error) {
	var resp struct {
		Items []GroupInvite `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups/invites/incoming", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FriendInvites returns pending friend invites sent or received by the user
func (c *Client) FriendInvites(ctx context.Context, token string) ([]FriendInvite, error) {
	var resp struct {
		Items []FriendInvite `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/friends/invites", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Currencies returns the supported currencies
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	var list []Currency
	if err := c.do(ctx, http.MethodGet, "/currencies", "", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func pageQuery(page int) url.Values {
	if page <= 1 {
		return nil
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}
