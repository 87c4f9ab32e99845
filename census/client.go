package census

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Namespaces selecting the game environment of a query.
const (
	NamespacePC    = "ps2:v2"
	NamespacePS4US = "ps2ps4us:v2"
	NamespacePS4EU = "ps2ps4eu:v2"
)

// Default values
const (
	DefaultBaseURL        = "https://census.daybreakgames.com"
	DefaultNamespace      = NamespacePC
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxBodySize    = int64(10 * 1024 * 1024)
)

// ErrNoServiceID is returned when a client is created without a service ID.
var ErrNoServiceID = errors.New("service ID is required")

// APIError is an error reported inside a 200 response body, the way the
// service signals bad collections, malformed queries and missing data.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("census error %s: %s", e.Code, e.Message)
	}
	if e.Code != "" {
		return "census error " + e.Code
	}
	return "census error: " + e.Message
}

// Config configures a census Client.
type Config struct {
	// ServiceID is the Daybreak-issued credential, without the "s:" prefix.
	// Required.
	ServiceID string

	// Namespace selects the environment collections are queried in.
	Namespace string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	RequestTimeout time.Duration
	MaxBodySize    int64

	// CacheSize enables response caching when positive; CacheTTL bounds
	// entry freshness.
	CacheSize int
	CacheTTL  time.Duration
}

func applyDefaults(cfg *Config) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
}

// Client issues census queries over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      Cache
	logger     zerolog.Logger
}

// New creates a census client. ErrNoServiceID is returned when the
// credential is missing.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	applyDefaults(&cfg)
	if cfg.ServiceID == "" {
		return nil, ErrNoServiceID
	}

	var cache Cache = NewNoopCache()
	if cfg.CacheSize > 0 {
		mc, err := NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		cache = mc
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		cache:  cache,
		logger: logger.With().Str("component", "census").Logger(),
	}, nil
}

// Response holds one query result: the raw records of the collection list
// plus the record count the service reported.
type Response struct {
	Returned int64
	Records  []json.RawMessage
}

// Decode unmarshals every record into out, which must be a pointer to a
// slice.
func (r *Response) Decode(out any) error {
	data, err := json.Marshal(r.Records)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Get runs the query with the /get verb and returns the collection list.
func (c *Client) Get(ctx context.Context, q *Query) (*Response, error) {
	body, err := c.fetch(ctx, "get", q)
	if err != nil {
		return nil, err
	}
	return parseListResponse(q.Collection(), body)
}

// Count runs the query with the /count verb.
func (c *Client) Count(ctx context.Context, q *Query) (int64, error) {
	body, err := c.fetch(ctx, "count", q)
	if err != nil {
		return 0, err
	}
	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return out.Count, nil
}

// URL renders the full request URL for the given verb and query.
func (c *Client) URL(verb string, q *Query) string {
	return c.cfg.BaseURL + "/s:" + c.cfg.ServiceID + "/" + verb + "/" + c.cfg.Namespace + "/" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, verb string, q *Query) ([]byte, error) {
	reqURL := c.URL(verb, q)
	if body, ok := c.cache.Get(reqURL); ok {
		c.logger.Debug().Str("collection", q.Collection()).Msg("census cache hit")
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("census request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("census returned status %d", resp.StatusCode)
	}
	if apiErr := detectError(body); apiErr != nil {
		return nil, apiErr
	}

	c.logger.Debug().
		Str("collection", q.Collection()).
		Dur("duration", time.Since(start)).
		Int("bytes", len(body)).
		Msg("census request")

	c.cache.Set(reqURL, body)
	return body, nil
}

// detectError recognizes the service's in-body error shapes:
// {"error": "..."} and {"errorCode": "...", "errorMessage": "..."}.
func detectError(body []byte) *APIError {
	var shape struct {
		Error        string `json:"error"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil
	}
	if shape.Error == "" && shape.ErrorCode == "" {
		return nil
	}
	msg := shape.Error
	if msg == "" {
		msg = shape.ErrorMessage
	}
	return &APIError{Code: shape.ErrorCode, Message: msg}
}

// parseListResponse extracts the "<collection>_list" array and the returned
// count.
func parseListResponse(collection string, body []byte) (*Response, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &Response{}
	if returned, ok := raw["returned"]; ok {
		if err := json.Unmarshal(returned, &out.Returned); err != nil {
			return nil, fmt.Errorf("failed to decode returned count: %w", err)
		}
	}

	listKey := collection + "_list"
	list, ok := raw[listKey]
	if !ok {
		// Some collections respond under a different list key; fall back to
		// the first *_list member.
		for key, val := range raw {
			if strings.HasSuffix(key, "_list") {
				list = val
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("response has no %s key", listKey)
	}

	if err := json.Unmarshal(list, &out.Records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", listKey, err)
	}
	return out, nil
}
