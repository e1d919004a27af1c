// Package api is the HTTP transport to the Campus Creatives REST API. It
// attaches bearer tokens, performs the single refresh-and-retry on 401 and
// translates every failure into a models.AppError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
)

// Endpoints that never carry an Authorization header.
const (
	TokenPath   = "/auth/token/"
	RefreshPath = "/auth/token/refresh/"
)

// TokenSource supplies bearer tokens. Refresh obtains a new access token and
// returns a SESSION_EXPIRED error when that is impossible.
type TokenSource interface {
	AccessToken(ctx context.Context) string
	Refresh(ctx context.Context) error
}

// Client performs API calls relative to a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *observability.APILogger
}

// NewClient returns a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     observability.NewAPILogger("api"),
	}
}

// SetTokenSource installs the session that authorizes requests. Without one,
// requests are sent anonymously and a 401 is terminal.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call. At most one of JSON and Form is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Form   *Multipart
}

type encodedBody struct {
	data        []byte
	contentType string
}

func (r Request) encode() (*encodedBody, error) {
	switch {
	case r.Form != nil:
		data, contentType, err := r.Form.encode()
		if err != nil {
			return nil, err
		}
		return &encodedBody{data: data, contentType: contentType}, nil
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, err
		}
		return &encodedBody{data: data, contentType: "application/json"}, nil
	default:
		return nil, nil
	}
}

// isAuthPath reports whether path is one of the token endpoints.
func isAuthPath(path string) bool {
	return path == TokenPath || path == RefreshPath
}

// Do sends req and decodes a successful JSON response into out (which may be nil).
// A 401 on an authorized endpoint triggers one refresh and one retry.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := req.encode()
	if err != nil {
		return models.NewInternalError(fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err))
	}

	status, raw, err := c.send(ctx, req, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !isAuthPath(req.Path) && c.tokens != nil {
		c.log.LogRetry(ctx, req.Method, req.Path)
		if err := c.tokens.Refresh(ctx); err != nil {
			return err
		}
		status, raw, err = c.send(ctx, req, body)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return models.NewSessionExpiredError(errors.New("request rejected after token refresh"))
		}
	}

	if status < 200 || status >= 300 {
		return statusError(req.Path, status, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.NewNetworkError(fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err))
	}
	return nil
}

// send performs a single round trip and returns the status and body.
func (c *Client) send(ctx context.Context, req Request, body *encodedBody) (int, []byte, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return 0, nil, models.NewInternalError(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", body.contentType)
	}
	if !isAuthPath(req.Path) && c.tokens != nil {
		if token := c.tokens.AccessToken(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if rid := observability.ExtractRequestID(ctx); rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	route := routeOf(req.Path)
	span, spanCtx := observability.StartClientSpan(ctx, httpReq, route)
	defer span.End()
	httpReq = httpReq.WithContext(spanCtx)

	done := observability.TrackAPI(req.Method, route)
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		done(0)
		span.SetError(err)
		c.log.LogError(spanCtx, req.Method+" "+req.Path, err)
		return 0, nil, models.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	done(resp.StatusCode)
	span.SetStatusCode(resp.StatusCode)
	c.log.LogRequest(spanCtx, req.Method, req.Path, resp.StatusCode, time.Since(start))
	if err != nil {
		span.SetError(err)
		return 0, nil, models.NewNetworkError(err)
	}
	return resp.StatusCode, raw, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, JSON: body}, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, JSON: body}, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// routeOf replaces id segments so metrics and spans stay low-cardinality.
func routeOf(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s != "" && strings.ContainsAny(s, "0123456789") {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
