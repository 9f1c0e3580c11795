package apihttp

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

	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/errors"
)

// Client is the typed API client. Non-2xx answers come back as *errors.APIError.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL   string
	Transport http.RoundTripper
	Jar       http.CookieJar
	Timeout   time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: opts.Transport,
			Jar:       opts.Jar,
			Timeout:   opts.Timeout,
		},
	}, nil
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Do sends body as JSON and decodes a 2xx answer into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register calls POST /auth/register.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me calls GET /auth/me.
func (c *Client) Me(ctx context.Context) (*session.Profile, error) {
	var resp session.Profile
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChangePassword calls PATCH /users/{id}/change-password.
func (c *Client) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	return c.Do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/change-password", req, nil)
}

// decodeAPIError reads the server's error body. message may be a string or
// a list of validation messages.
func decodeAPIError(status int, body []byte) *errors.APIError {
	apiErr := &errors.APIError{Status: status}

	var payload struct {
		Error   string          `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	apiErr.Code = payload.Error

	var msg string
	if err := json.Unmarshal(payload.Message, &msg); err == nil {
		apiErr.Message = msg
		return apiErr
	}
	var msgs []string
	if err := json.Unmarshal(payload.Message, &msgs); err == nil {
		apiErr.Messages = msgs
		apiErr.Message = strings.Join(msgs, "; ")
	}
	return apiErr
}
