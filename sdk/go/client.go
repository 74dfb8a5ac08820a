package reactangosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is stamped on every outgoing request.
const RequestIDHeader = "X-Request-Id"

// Client is a minimal Reactango HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Logger     *slog.Logger
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// RequestOptions carries per-request configuration.
type RequestOptions struct {
	Header http.Header
	Query  url.Values
}

// User represents the API user model.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	FavoriteFood *string   `json:"favorite_food"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserInput is the POST /users/ body.
type CreateUserInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	FavoriteFood *string `json:"favorite_food,omitempty"`
}

// UpdateUserInput is the PUT /users/{id}/ body. Nil fields are left unchanged;
// an empty FavoriteFood clears it.
type UpdateUserInput struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	FavoriteFood *string `json:"favorite_food,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	RequestID  string         `json:"request_id"`
	Payload    map[string]any `json:"payload"`
}

// UsersPath is the collection endpoint.
const UsersPath = "/users/"

// UserPath returns the item endpoint for id.
func UserPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10) + "/"
}

// ListUsers returns all users, newest first.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, UsersPath, RequestOptions{}, nil, &resp)
	if resp == nil {
		resp = []User{}
	}
	return resp, err
}

// GetUser fetches one user.
func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, UserPath(id), RequestOptions{}, nil, &resp)
	return resp, err
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, UsersPath, RequestOptions{}, in, &resp)
	return resp, err
}

// UpdateUser changes the provided fields of a user.
func (c *Client) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPut, UserPath(id), RequestOptions{}, in, &resp)
	return resp, err
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, UserPath(id), RequestOptions{}, nil, nil)
}

// Events returns recent audit events, optionally filtered by type.
func (c *Client) Events(ctx context.Context, limit int, eventType string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if eventType != "" {
		q.Set("type", eventType)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/events", RequestOptions{Query: q}, nil, &resp)
	return resp.Items, err
}

// Get decodes a GET response into out.
func (c *Client) Get(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, opts, nil, out)
}

// Post sends body and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, opts RequestOptions, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, opts, body, out)
}

// Put sends body and decodes the response into out.
func (c *Client) Put(ctx context.Context, endpoint string, opts RequestOptions, body, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, opts, body, out)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, opts RequestOptions) error {
	return c.do(ctx, http.MethodDelete, endpoint, opts, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, opts RequestOptions, body any, out any) error {
	target := c.url(endpoint, opts.Query)
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &Error{Kind: KindTransport, Method: method, URL: target, Message: "encode request body", Err: err}
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, URL: target, Message: "build request", Err: err}
	}
	for k, vals := range opts.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().DebugContext(ctx, "request failed", "method", method, "url", target, "error", err)
		return &Error{Kind: KindTransport, Method: method, URL: target, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	c.logger().DebugContext(ctx, "request done",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", req.Header.Get(RequestIDHeader),
	)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, URL: target, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(method, target, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Method: method, URL: target, StatusCode: resp.StatusCode, Message: "decode response", Body: string(data), Err: err}
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// Built per call so concurrent use never writes to c.
	return &http.Client{Timeout: c.Timeout}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return c.Logger
}

func (c *Client) url(endpoint string, query url.Values) string {
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// String implements fmt.Stringer for debugging.
func (u User) String() string {
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
