// Package backend is a typed client for the game's REST API: game token issuance for
// members and guests, guest promotion, account login and the leaderboard.
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
)

const DefaultTimeout = 15 * time.Second

// Client talks JSON to the backend API rooted at baseURL
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return NewClientWithHTTPClient(baseURL, &http.Client{Timeout: DefaultTimeout})
}

func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// Ping reports whether the backend can be reached at all. Any HTTP response counts,
// since the API root isn't required to serve anything.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &networkError{err: err}
	}
	resp.Body.Close()
	return nil
}

// do issues a JSON request and returns the raw response body of a 2xx response. If
// bearer is non-empty it is sent as the Authorization header.
func (c *Client) do(ctx context.Context, method, path, bearer string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &networkError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &networkError{err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   string(respBody),
		}
	}
	return respBody, nil
}

// decode unmarshals a response body into result, looking inside a top-level "data"
// envelope when the backend wraps its payload in one
func decode(body []byte, result interface{}) error {
	payload := unwrapData(body)
	if len(bytes.TrimSpace(payload)) == 0 {
		return &malformedError{message: "empty response body"}
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return &malformedError{message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return nil
}

func unwrapData(body []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("false")) {
		return body
	}
	return data
}
