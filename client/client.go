package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/brojonat/solboard/service/solana"
)

// ErrSuperseded is returned by Lookup when a newer lookup in the same
// session won. The returned result still carries the winner's state.
var ErrSuperseded = errors.New("lookup superseded by a newer lookup")

// LookupResult is a session's lookup state as reported by the server.
type LookupResult struct {
	SessionID string       `json:"session_id"`
	State     lookup.State `json:"state"`
}

// LookupRecord is one audited lookup.
type LookupRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Generation   int64     `json:"generation"`
	Address      string    `json:"address"`
	Success      bool      `json:"success"`
	Error        *string   `json:"error,omitempty"`
	Balance      string    `json:"balance"`
	Transactions int       `json:"transactions"`
	Dropped      int       `json:"dropped"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

// MetricDefinitions is the server's metric catalogue.
type MetricDefinitions struct {
	Categories     []ranking.Category `json:"categories"`
	DefaultSort    string             `json:"default_sort"`
	DefaultDisplay []string           `json:"default_display"`
}

// HistoryParams overrides the server's fetch defaults. Zero values are omitted.
type HistoryParams struct {
	Limit     int
	BatchSize int
	Delay     time.Duration
	Policy    solana.Policy
}

// UsersParams is a leaderboard query. Toggle selects or deselects one metric.
type UsersParams struct {
	Query   string
	Sort    string
	Metrics []string
	Toggle  string
}

// Client is the HTTP client for the solboard service. Lookups made through
// one Client share a server session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new solboard client. A nil httpClient gets a cookie
// jar so the lookup session persists across calls.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: 2 * time.Minute, Jar: jar}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// History fetches a wallet's recent history outside of any session.
func (c *Client) History(ctx context.Context, address string, params HistoryParams) (*solana.WalletSnapshot, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.BatchSize > 0 {
		q.Set("batch_size", strconv.Itoa(params.BatchSize))
	}
	if params.Delay != 0 {
		q.Set("delay", params.Delay.String())
	}
	if params.Policy != "" {
		q.Set("policy", string(params.Policy))
	}

	u := fmt.Sprintf("%s/api/v1/wallets/%s/history", c.baseURL, url.PathEscape(address))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var snapshot solana.WalletSnapshot
	if err := c.getJSON(ctx, u, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Lookup runs a lookup in this client's session. A failed lookup returns
// both the committed state and an error carrying the server's message.
func (c *Client) Lookup(ctx context.Context, address string) (*LookupResult, error) {
	body, err := json.Marshal(map[string]string{"address": address})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result LookupResult
	if err := json.Unmarshal(data, &result); err != nil || result.SessionID == "" {
		return nil, errorFromBody(resp.StatusCode, data)
	}

	c.logger.Debug("lookup completed", "address", address, "session", result.SessionID, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusOK:
		return &result, nil
	case resp.StatusCode == http.StatusConflict:
		return &result, ErrSuperseded
	case result.State.Err != "":
		return &result, fmt.Errorf("lookup failed: %s", result.State.Err)
	default:
		return &result, fmt.Errorf("lookup failed with status %d", resp.StatusCode)
	}
}

// CurrentLookup returns this client's session state.
func (c *Client) CurrentLookup(ctx context.Context) (*LookupResult, error) {
	var result LookupResult
	if err := c.getJSON(ctx, c.baseURL+"/api/v1/lookup", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Lookups lists audited lookups, newest first. An empty address lists all.
func (c *Client) Lookups(ctx context.Context, address string, limit int) ([]LookupRecord, error) {
	q := url.Values{}
	if address != "" {
		q.Set("address", address)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := c.baseURL + "/api/v1/lookups"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var response struct {
		Lookups []LookupRecord `json:"lookups"`
	}
	if err := c.getJSON(ctx, u, &response); err != nil {
		return nil, err
	}
	return response.Lookups, nil
}

// Users ranks the server's creators.
func (c *Client) Users(ctx context.Context, params UsersParams) (*ranking.Page, error) {
	q := url.Values{}
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if params.Sort != "" {
		q.Set("sort", params.Sort)
	}
	if len(params.Metrics) > 0 {
		q.Set("metrics", strings.Join(params.Metrics, ","))
	}
	if params.Toggle != "" {
		q.Set("toggle", params.Toggle)
	}
	u := c.baseURL + "/api/v1/users"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var page ranking.Page
	if err := c.getJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MetricDefinitions returns the metric catalogue.
func (c *Client) MetricDefinitions(ctx context.Context) (*MetricDefinitions, error) {
	var defs MetricDefinitions
	if err := c.getJSON(ctx, c.baseURL+"/api/v1/metric-definitions", &defs); err != nil {
		return nil, err
	}
	return &defs, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Version returns the server's build version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/version", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errorFromBody(resp.StatusCode, body)
}

func errorFromBody(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
