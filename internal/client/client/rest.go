package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/spendsmart/internal/common"
	"github.com/dmitrijs2005/spendsmart/internal/logging"
)

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 1 << 20

// TokenSource returns the bearer token to attach to a request, or "" for none.
type TokenSource func() string

// RESTClient talks JSON over HTTP to the finance backend.
// It is safe for concurrent use.
type RESTClient struct {
	baseURL   string
	http      *http.Client
	token     TokenSource
	logger    logging.Logger
	requestID func() string
}

type Option func(*RESTClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RESTClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *RESTClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *RESTClient) {
		if ts != nil {
			c.token = ts
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *RESTClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRESTClient returns a client for the API rooted at baseURL.
func NewRESTClient(baseURL string, opts ...Option) (*RESTClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: want http(s)://host", baseURL)
	}

	c := &RESTClient{
		baseURL:   strings.TrimRight(u.String(), "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		token:     func() string { return "" },
		logger:    logging.Discard(),
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Signup registers a pending account and returns the temporary subject id
// that scopes the OTP challenge.
func (c *RESTClient) Signup(ctx context.Context, req SignupRequest) (string, error) {
	var resp tempSubjectResponse
	if err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return "", err
	}
	if resp.TempUserID == "" {
		return "", c.missingField("signup", "temp_user_id")
	}
	return resp.TempUserID.String(), nil
}

// VerifyOTP confirms the challenge identified by tempID.
func (c *RESTClient) VerifyOTP(ctx context.Context, tempID, otp string) error {
	req := verifyOTPRequest{TempUserID: tempID, OTP: otp}
	return asVerification(c.do(ctx, "verify-otp", http.MethodPost, "/auth/verify-otp", req, nil))
}

func (c *RESTClient) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	req := loginRequest{Username: username, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.AccessToken == "" {
		return nil, c.missingField("login", "id/access_token")
	}
	return &resp, nil
}

// ForgotPassword starts a password reset and returns its temporary subject id.
func (c *RESTClient) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp tempSubjectResponse
	req := forgotPasswordRequest{Email: email}
	if err := c.do(ctx, "forgot-password", http.MethodPost, "/auth/forgot-password", req, &resp); err != nil {
		return "", err
	}
	if resp.TempUserID == "" {
		return "", c.missingField("forgot-password", "temp_user_id")
	}
	return resp.TempUserID.String(), nil
}

// ResetPassword completes a password reset with the emailed passcode.
func (c *RESTClient) ResetPassword(ctx context.Context, tempID, otp, newPassword string) error {
	req := resetPasswordRequest{TempUserID: tempID, OTP: otp, NewPassword: newPassword}
	return asVerification(c.do(ctx, "reset-password", http.MethodPost, "/auth/reset-password", req, nil))
}

// UpdateUser changes username and/or email. When the email changes the
// backend answers with a temporary subject id for the confirmation OTP;
// otherwise the returned id is "".
func (c *RESTClient) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (string, error) {
	var resp tempSubjectResponse
	if err := c.do(ctx, "update-user", http.MethodPut, "/users/"+url.PathEscape(id), req, &resp); err != nil {
		return "", err
	}
	return resp.TempUserID.String(), nil
}

func (c *RESTClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, "delete-user", http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *RESTClient) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, "list-users", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a user together with their transactions.
func (c *RESTClient) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.do(ctx, "get-user", http.MethodGet, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *RESTClient) UpdateUserRole(ctx context.Context, id, role string) error {
	req := updateRoleRequest{Role: role}
	return c.do(ctx, "update-role", http.MethodPut, "/users/"+url.PathEscape(id)+"/role", req, nil)
}

func (c *RESTClient) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var txs []Transaction
	if err := c.do(ctx, "list-transactions", http.MethodGet, "/transactions/", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *RESTClient) CreateTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, "create-transaction", http.MethodPost, "/transactions", in, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *RESTClient) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, "update-transaction", http.MethodPut, "/transactions/"+url.PathEscape(id), in, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *RESTClient) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, "delete-transaction", http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *RESTClient) missingField(op, field string) error {
	return &Error{Kind: KindNetwork, Op: op, Detail: "malformed response: missing " + field}
}

// do performs one JSON request. in and out may be nil. Every failure is
// returned as *Error.
func (c *RESTClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindValidation, Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	requestID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer := common.BearerToken(c.token()); bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, bearer)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "backend call failed", "op", op, "request_id", requestID, "error", err)
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug(ctx, "backend call",
		"op", op, "method", method, "path", path,
		"status", resp.StatusCode, "request_id", requestID,
		"duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Detail: parseDetail(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	return nil
}

// parseDetail extracts the backend's "detail" message. FastAPI sends either
// a string or a list of {"msg": ...} objects.
func parseDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
