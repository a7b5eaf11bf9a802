package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"admin-realtime-service/internal/domain/auth"
	"admin-realtime-service/internal/pkg/xerrors"

	"go.uber.org/zap"
)

// AuthAPI is the REST surface the session store depends on.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// envelope is the standard API response format.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks JSON to the auth endpoints of the admin API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result auth.LoginResult
	if err := c.postJSON(ctx, "/auth/login", body, &result); err != nil {
		return nil, xerrors.Wrap(err, "login rejected")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		return nil, xerrors.Wrap(xerrors.ErrAuth, "login response missing tokens")
	}
	return &result, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error) {
	body := map[string]string{"refreshToken": refreshToken}

	var result auth.RefreshResult
	if err := c.postJSON(ctx, "/auth/refresh", body, &result); err != nil {
		return nil, xerrors.Wrap(err, "token refresh rejected")
	}
	if result.AccessToken == "" {
		return nil, xerrors.Wrap(xerrors.ErrAuth, "refresh response missing access token")
	}
	return &result, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.postJSON(ctx, "/auth/logout", body, nil)
}

// postJSON sends a POST request and unwraps the success envelope into result.
// Any transport failure, non-2xx status or non-success envelope maps to ErrAuth.
func (c *Client) postJSON(ctx context.Context, path string, body, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrAuth, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("%w: malformed response (status %d)", xerrors.ErrAuth, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		c.logger.Debug("auth request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Message),
		)
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", xerrors.ErrAuth, msg)
	}

	if result != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("%w: malformed response data", xerrors.ErrAuth)
		}
	}
	return nil
}
