package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://us.api.battle.net"
	DefaultLocale     = "en_US"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// ErrItemNotFound is returned by GetItem when the feed answers with a reason
// document instead of an item.
var ErrItemNotFound = errors.New("item not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Client talks to the auction feed REST API for a single realm.
type Client struct {
	http    *resty.Client
	baseURL string
	realm   string
	locale  string
	apiKey  string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithLocale sets the locale query parameter.
func WithLocale(locale string) ClientOption {
	return func(c *Client) {
		c.locale = locale
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.http.SetRetryCount(n)
	}
}

// WithRetryDelay sets the initial and maximum backoff delays.
func WithRetryDelay(initial, max time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetRetryWaitTime(initial)
		c.http.SetRetryMaxWaitTime(max)
	}
}

// NewClient creates a new feed client for realm, authenticated by apiKey.
func NewClient(realm, apiKey string, opts ...ClientOption) *Client {
	hc := resty.New().
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultMaxRetries).
		SetRetryWaitTime(DefaultRetryDelay).
		SetRetryMaxWaitTime(DefaultMaxDelay).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:    hc,
		baseURL: DefaultBaseURL,
		realm:   realm,
		locale:  DefaultLocale,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Realm returns the realm this client reads.
func (c *Client) Realm() string {
	return c.realm
}

// retryable retries on throttling and server errors; transport errors are
// retried by resty itself.
func retryable(r *resty.Response, err error) bool {
	if err != nil || r == nil {
		return true
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// get performs a GET with the api key and locale attached.
func (c *Client) get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("locale", c.locale).
		SetQueryParam("apikey", c.apiKey)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return resp.Body(), &StatusError{URL: url, Code: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// IndexFile is one entry of the snapshot index.
type IndexFile struct {
	URL          string `json:"url"`
	LastModified int64  `json:"lastModified"` // epoch ms
}

// Index lists the snapshots currently published for a realm, newest first.
type Index struct {
	Files []IndexFile `json:"files"`
}

// GetIndex fetches the snapshot index of the configured realm.
func (c *Client) GetIndex(ctx context.Context) (*Index, error) {
	url := fmt.Sprintf("%s/wow/auction/data/%s", c.baseURL, c.realm)

	body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	var idx Index
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &idx, nil
}

// GetSnapshot downloads a snapshot body verbatim.
// Snapshot urls are pre-signed by the index, so no credentials are attached.
func (c *Client) GetSnapshot(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, &StatusError{URL: url, Code: resp.StatusCode()}
	}
	return resp.Body(), nil
}

type reasonDoc struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// GetItem fetches the item document for itemID.
// Returns an error wrapping ErrItemNotFound when the feed answers with a
// reason document, whatever the HTTP status.
func (c *Client) GetItem(ctx context.Context, itemID int64) (json.RawMessage, error) {
	url := c.baseURL + "/wow/item/" + strconv.FormatInt(itemID, 10)

	body, err := c.get(ctx, url, nil)

	var reason reasonDoc
	if len(body) > 0 && json.Unmarshal(body, &reason) == nil && reason.Reason != "" {
		return nil, fmt.Errorf("item %d: %s: %w", itemID, reason.Reason, ErrItemNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("item %d: invalid json body", itemID)
	}
	return json.RawMessage(body), nil
}
