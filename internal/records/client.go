package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordUpdate   = errors.New("record update failed")
)

// StatusError carries the upstream response of a failed Baserow call.
// It unwraps to ErrRecordNotFound or ErrRecordUpdate.
type StatusError struct {
	Kind   error
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: baserow status %d: %s", e.Kind, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 4096

// Client talks to the Baserow rows REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the rows endpoint baseURL, e.g.
// https://api.baserow.io/api/database/rows/table/. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}
}

// RowURL returns {base}{table}/{id}/?user_field_names=true.
func (c *Client) RowURL(tableID string, recordID int64) string {
	base := c.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + tableID + "/" + strconv.FormatInt(recordID, 10) + "/?user_field_names=true"
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Fetch loads one row. Any non-2xx answer is reported as ErrRecordNotFound.
func (c *Client) Fetch(ctx context.Context, tableID string, recordID int64) (Record, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.RowURL(tableID, recordID), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch record %d: %w", recordID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read record %d: %w", recordID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Kind: ErrRecordNotFound, Status: resp.StatusCode, Body: truncate(body)}
	}
	rec, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode record %d: %w", recordID, err)
	}
	return rec, nil
}

// Patch overwrites only the given fields of one row.
func (c *Client) Patch(ctx context.Context, tableID string, recordID int64, fields map[string]string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, c.RowURL(tableID, recordID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build patch request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: patch record %d: %v", ErrRecordUpdate, recordID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Kind: ErrRecordUpdate, Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
