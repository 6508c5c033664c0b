package client

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

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/reputation-engine"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "reputation-engine-client"
	callerHeader   = "x-caller"
)

// Client talks to a reputation engine over HTTP.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
	caller  string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: baseURL,
	}
	httpClient.Transport = c
	return c
}

// As returns a client that acts on behalf of caller. It shares the cache.
func (c *Client) As(caller string) *Client {
	clone := *c
	clone.caller = caller
	httpClient := *c.client
	httpClient.Transport = &clone
	clone.client = &httpClient
	return &clone
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if c.caller != "" {
		req.Header.Set(callerHeader, c.caller)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Error is a non-success response from the engine.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("reputation engine: %d %s", e.StatusCode, e.Message)
}

func (c *Client) HttpRequest(ctx context.Context, method, path string, body any, response any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure reputation.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error == "" {
			failure.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: failure.Error}
	}

	if response == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

func (c *Client) BuildVersion(ctx context.Context) (string, error) {
	cacheKey := "version:" + c.baseURL
	if x, found := c.cache.Get(cacheKey); found {
		return x.(string), nil
	}

	var resp reputation.BuildVersionResponse
	if err := c.HttpRequest(ctx, http.MethodGet, "/build-version", nil, &resp); err != nil {
		return "", err
	}
	c.cache.Set(cacheKey, resp.Version, cache.DefaultExpiration)
	return resp.Version, nil
}

func (c *Client) GetUserReputation(ctx context.Context, user, tag string) (float64, error) {
	var resp reputation.ReputationResponse
	err := c.HttpRequest(ctx, http.MethodGet, reputationPath(user, tag), nil, &resp)
	return resp.Reputation, err
}

func (c *Client) GetUserReputationFull(ctx context.Context, user, tag string) (reputation.ReputationData, error) {
	var resp reputation.ReputationData
	err := c.HttpRequest(ctx, http.MethodGet, reputationPath(user, tag)+"/full", nil, &resp)
	return resp, err
}

func (c *Client) RecalculateReputation(ctx context.Context, user, tag string) (float64, error) {
	var resp reputation.ReputationResponse
	err := c.HttpRequest(ctx, http.MethodPost, reputationPath(user, tag)+"/recalculate", nil, &resp)
	return resp.Reputation, err
}

func (c *Client) GetDocument(ctx context.Context, collection, key string) (reputation.Document, error) {
	var doc reputation.Document
	err := c.HttpRequest(ctx, http.MethodGet, documentPath(collection, key), nil, &doc)
	return doc, err
}

func (c *Client) PutDocument(ctx context.Context, collection, key string, data any, version uint64) (reputation.Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return reputation.Document{}, fmt.Errorf("failed to encode document: %v", err)
	}

	var doc reputation.Document
	err = c.HttpRequest(ctx, http.MethodPut, documentPath(collection, key), reputation.WriteRequest{Data: raw, Version: version}, &doc)
	return doc, err
}

func (c *Client) DeleteDocument(ctx context.Context, collection, key string, version uint64) error {
	path := documentPath(collection, key) + "?version=" + strconv.FormatUint(version, 10)
	return c.HttpRequest(ctx, http.MethodDelete, path, nil, nil)
}

func reputationPath(user, tag string) string {
	return "/reputation/" + url.PathEscape(user) + "/" + url.PathEscape(tag)
}

func documentPath(collection, key string) string {
	return "/documents/" + url.PathEscape(collection) + "/" + url.PathEscape(key)
}
