// Package backend talks to the short-link backend over its JSON API. Every
// response is wrapped in an {error, message} envelope.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/infra/logger"
	"go.uber.org/zap"
)

// API is the subset of the backend the dashboard uses. Tokens are passed per
// call; the client itself holds no session.
type API interface {
	Authenticate(ctx context.Context, username, passwordHash string) (string, error)
	Me(ctx context.Context, token string) (*model.User, error)
	CreateUser(ctx context.Context, token string, req CreateUserRequest) error
	DeleteUser(ctx context.Context, token, username string) error
	ChangePassword(ctx context.Context, token string, req ChangePasswordRequest) error

	CreateLink(ctx context.Context, token string, req CreateLinkRequest) error
	EditLink(ctx context.Context, token string, req EditLinkRequest) error
	DeleteLink(ctx context.Context, token, linkID string) error
	ListLinks(ctx context.Context, token string) ([]model.Link, error)

	ListAllLinks(ctx context.Context, token string) ([]model.Link, error)
	ListAllUsers(ctx context.Context, token string) ([]model.User, error)

	Ping(ctx context.Context) error
}

// CreateUserRequest is the body of /api/users/create. Password is already hashed.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Level    *int   `json:"level,omitempty"`
}

// ChangePasswordRequest is the body of /api/users/changepassword. An empty
// Username changes the caller's own password.
type ChangePasswordRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// CreateLinkRequest is the body of /api/links/create.
type CreateLinkRequest struct {
	LinkID  string          `json:"linkid,omitempty"`
	Content string          `json:"content"`
	QRInfo  json.RawMessage `json:"qrinfo"`
}

// EditLinkRequest is the body of /api/links/edit.
type EditLinkRequest struct {
	LinkID    string          `json:"linkid"`
	Content   string          `json:"content,omitempty"`
	NewLinkID string          `json:"newlinkid,omitempty"`
	QRInfo    json.RawMessage `json:"qrinfo,omitempty"`
}

type envelope struct {
	Error   bool            `json:"error"`
	Message json.RawMessage `json:"message"`
}

// HTTPClient implements API over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient targets baseURL (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) Authenticate(ctx context.Context, username, passwordHash string) (string, error) {
	var msg json.RawMessage
	headers := http.Header{}
	headers.Set("username", username)
	headers.Set("password", passwordHash)
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/auth", headers, nil, &msg); err != nil {
		return "", err
	}
	token := messageText(msg, "")
	if token == "" {
		return "", &model.RemoteError{StatusCode: http.StatusOK, Message: "login response carried no token"}
	}
	return token, nil
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", loginHeader(token), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, token string, req CreateUserRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/users/create", loginHeader(token), req, nil)
}

func (c *HTTPClient) DeleteUser(ctx context.Context, token, username string) error {
	body := map[string]string{"username": username}
	return c.doJSON(ctx, http.MethodPost, "/api/users/delete", loginHeader(token), body, nil)
}

func (c *HTTPClient) ChangePassword(ctx context.Context, token string, req ChangePasswordRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/users/changepassword", loginHeader(token), req, nil)
}

func (c *HTTPClient) CreateLink(ctx context.Context, token string, req CreateLinkRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/links/create", loginHeader(token), req, nil)
}

func (c *HTTPClient) EditLink(ctx context.Context, token string, req EditLinkRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/links/edit", loginHeader(token), req, nil)
}

func (c *HTTPClient) DeleteLink(ctx context.Context, token, linkID string) error {
	body := map[string]string{"linkid": linkID}
	return c.doJSON(ctx, http.MethodPost, "/api/links/delete", loginHeader(token), body, nil)
}

func (c *HTTPClient) ListLinks(ctx context.Context, token string) ([]model.Link, error) {
	var links []model.Link
	if err := c.doJSON(ctx, http.MethodGet, "/api/links/list", loginHeader(token), nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *HTTPClient) ListAllLinks(ctx context.Context, token string) ([]model.Link, error) {
	var links []model.Link
	if err := c.doJSON(ctx, http.MethodGet, "/api/siteadmin/links/list", loginHeader(token), nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *HTTPClient) ListAllUsers(ctx context.Context, token string) ([]model.User, error) {
	var users []model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/siteadmin/users/list", loginHeader(token), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Ping reports whether the backend answers HTTP at all. Any status counts.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.RemoteError{Message: err.Error()}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func loginHeader(token string) http.Header {
	h := http.Header{}
	h.Set("login", token)
	return h
}

// doJSON sends body (if any) and decodes the envelope's message into result
// (if non-nil). Transport failures, non-2xx responses and error envelopes all
// come back as *model.RemoteError.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, headers http.Header, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("path", path), zap.Error(err))
		return &model.RemoteError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.RemoteError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		logger.Elapsed(start),
	)

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &model.RemoteError{StatusCode: resp.StatusCode, Message: fallbackMessage(resp.StatusCode, respBody)}
		}
		return &model.RemoteError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}

	if env.Error || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    messageText(env.Message, fallbackMessage(resp.StatusCode, nil)),
		}
	}

	if result != nil && len(env.Message) > 0 {
		if err := json.Unmarshal(env.Message, result); err != nil {
			return &model.RemoteError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
		}
	}
	return nil
}

// messageText renders an envelope message for display. Strings come back
// as-is, other JSON values as their JSON text.
func messageText(raw json.RawMessage, fallback string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fallback
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

func fallbackMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text != "" && len(text) <= 200 {
		return text
	}
	return fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
}
