package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/investly/investly/internal/cli/auth"
)

// ErrNotAuthenticated is returned by authorized calls when no token is stored
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'investly login' first")

// APIError is a non-2xx response from the API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Message)
}

// IsAuthError reports whether err is a 401/403 from the API
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// Client represents an HTTP client for the Investly API
type Client struct {
	baseURL    string
	tokens     auth.TokenStore
	httpClient *http.Client
}

// New creates a new API client. tokens supplies the bearer token for authorized calls.
func New(baseURL string, tokens auth.TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL is the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// User is the account as returned by the API
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"is_email_verified"`
	Active          bool      `json:"active"`
	Balance         int64     `json:"balance"`
	CreatedAt       time.Time `json:"created_at"`
}

// AuthResponse is returned by signin and signup
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Plan is an investment plan
type Plan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	MinAmount    int64   `json:"min_amount"`
	MaxAmount    int64   `json:"max_amount"`
	ROIPercent   float64 `json:"roi_percent"`
	DurationDays int     `json:"duration_days"`
	ImageURL     string  `json:"image_url"`
	Active       bool    `json:"active"`
}

// PlanInput creates a plan
type PlanInput struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	MinAmount    int64   `json:"min_amount"`
	MaxAmount    int64   `json:"max_amount"`
	ROIPercent   float64 `json:"roi_percent"`
	DurationDays int     `json:"duration_days"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// Investment is a position in a plan
type Investment struct {
	ID             string     `json:"id"`
	PlanID         string     `json:"plan_id"`
	Amount         int64      `json:"amount"`
	ExpectedReturn int64      `json:"expected_return"`
	Status         string     `json:"status"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	SettledAt      *time.Time `json:"settled_at"`
	Plan           *Plan      `json:"plan,omitempty"`
}

// Transaction is a money movement on the account
type Transaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the admin dashboard aggregate
type Stats struct {
	Users             int64 `json:"users"`
	ActiveUsers       int64 `json:"active_users"`
	ActiveInvestments int64 `json:"active_investments"`
	TotalInvested     int64 `json:"total_invested"`
	TotalPaidOut      int64 `json:"total_paid_out"`
	OpenTickets       int64 `json:"open_tickets"`
}

// do sends a request and decodes a JSON response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, authorized bool, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if authorized {
		if c.tokens == nil {
			return ErrNotAuthenticated
		}
		token, err := c.tokens.Load()
		if err != nil {
			if errors.Is(err, auth.ErrNoToken) {
				return ErrNotAuthenticated
			}
			return err
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, authorized bool, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, authorized, contentType, body, out)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}

// Signin authenticates with email and password
func (c *Client) Signin(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/signin", false, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers a new account
func (c *Client) Signup(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", false, map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account behind the stored token
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", true, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyEmail confirms an email address with a token from the verification link
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/verify-email", false, map[string]string{"token": token}, nil)
}

// ResendVerification asks for a new verification email
func (c *Client) ResendVerification(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/resend-verification", true, nil, nil)
}

// UploadFile sends a local file and returns its public URL
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to create form: %w", err)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/uploads", true, writer.FormDataContentType(), &buf, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// ListPlans returns the active plans
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := c.doJSON(ctx, http.MethodGet, "/api/plans", false, nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Invest puts amount (cents) into a plan
func (c *Client) Invest(ctx context.Context, planID string, amount int64) (*Investment, error) {
	var inv Investment
	err := c.doJSON(ctx, http.MethodPost, "/api/investments", true, map[string]interface{}{
		"plan_id": planID,
		"amount":  amount,
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvestments returns the caller's positions
func (c *Client) ListInvestments(ctx context.Context) ([]Investment, error) {
	var investments []Investment
	if err := c.doJSON(ctx, http.MethodGet, "/api/investments", true, nil, &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

// Deposit credits the caller's balance
func (c *Client) Deposit(ctx context.Context, amount int64, reference string) (*Transaction, error) {
	var txn Transaction
	err := c.doJSON(ctx, http.MethodPost, "/api/deposits", true, map[string]interface{}{
		"amount":    amount,
		"reference": reference,
	}, &txn)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// AdminStats returns platform statistics
func (c *Client) AdminStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/stats", true, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListUsers returns all accounts
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/users", true, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreatePlan adds a plan
func (c *Client) CreatePlan(ctx context.Context, input PlanInput) (*Plan, error) {
	var plan Plan
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/plans", true, input, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
