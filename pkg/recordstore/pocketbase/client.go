// Package pocketbase talks to a hosted PocketBase instance over its REST API.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

const userAgent = "LMS-Learner-Go/1.0.0"

// Client implements recordstore.Store against /api/collections/*.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the instance at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AuthResult is the answer of a password authentication.
type AuthResult struct {
	Token  string             `json:"token"`
	Record recordstore.Record `json:"record"`
}

// List fetches one page of records.
func (c *Client) List(ctx context.Context, collection string, opts recordstore.ListOptions) (recordstore.ListResult, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		query.Set("perPage", strconv.Itoa(opts.PerPage))
	}
	if len(opts.Filter) > 0 {
		query.Set("filter", opts.Filter.String())
	}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}

	endpoint := c.recordsURL(collection, "")
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var result recordstore.ListResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return recordstore.ListResult{}, fmt.Errorf("list %s: %w", collection, err)
	}
	if result.Items == nil {
		result.Items = []recordstore.Record{}
	}
	return result, nil
}

// Create inserts a record.
func (c *Client) Create(ctx context.Context, collection string, fields map[string]any) (recordstore.Record, error) {
	var rec recordstore.Record
	if err := c.do(ctx, http.MethodPost, c.recordsURL(collection, ""), fields, &rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return rec, nil
}

// Update patches the record with id.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) (recordstore.Record, error) {
	var rec recordstore.Record
	if err := c.do(ctx, http.MethodPatch, c.recordsURL(collection, id), fields, &rec); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// AuthWithPassword signs a user in against an auth collection, usually "users".
func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (AuthResult, error) {
	endpoint := fmt.Sprintf("%s/api/collections/%s/auth-with-password", c.baseURL, url.PathEscape(collection))
	body := map[string]any{"identity": identity, "password": password}

	var result AuthResult
	if err := c.do(ctx, http.MethodPost, endpoint, body, &result); err != nil {
		return AuthResult{}, fmt.Errorf("auth with password: %w", err)
	}
	return result, nil
}

// ConfirmToken refreshes token against an auth collection and returns the id of the
// record it belongs to. A rejected token fails with recordstore.ErrUnauthorized.
func (c *Client) ConfirmToken(ctx context.Context, collection, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/collections/%s/auth-refresh", c.baseURL, url.PathEscape(collection))

	var result AuthResult
	if err := c.do(recordstore.WithToken(ctx, token), http.MethodPost, endpoint, nil, &result); err != nil {
		return "", fmt.Errorf("auth refresh: %w", err)
	}
	if result.Record.ID() == "" {
		return "", &recordstore.RemoteError{Status: http.StatusOK, Message: "auth refresh returned no record", Kind: recordstore.ErrUnauthorized}
	}
	return result.Record.ID(), nil
}

// Ping checks the instance health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/api/health", nil, nil)
}

func (c *Client) recordsURL(collection, id string) string {
	endpoint := fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, url.PathEscape(collection))
	if id != "" {
		endpoint += "/" + url.PathEscape(id)
	}
	return endpoint
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := recordstore.TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return remoteError(resp.StatusCode, bodyBytes)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError is the error body PocketBase returns.
type apiError struct {
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Data    map[string]apiFieldProblem `json:"data"`
}

type apiFieldProblem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func remoteError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))

	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
		for field, problem := range parsed.Data {
			message += fmt.Sprintf(" (%s: %s)", field, problem.Message)
			if problem.Code == "validation_not_unique" {
				return &recordstore.RemoteError{Status: status, Message: message, Kind: recordstore.ErrConflict}
			}
		}
	}

	remote := &recordstore.RemoteError{Status: status, Message: message}
	switch status {
	case http.StatusBadRequest:
		remote.Kind = recordstore.ErrInvalid
	case http.StatusUnauthorized, http.StatusForbidden:
		remote.Kind = recordstore.ErrUnauthorized
	case http.StatusNotFound:
		remote.Kind = recordstore.ErrNotFound
	}
	return remote
}
