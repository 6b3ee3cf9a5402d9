package provider

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

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 200 * time.Millisecond
)

// ClientConfig configures the provider REST client. MaxRetries < 0 disables
// retries of idempotent reads; 0 selects the default.
type ClientConfig struct {
	BaseURL     string
	TokenID     string
	TokenSecret string
	Timeout     time.Duration
	HTTPClient  *http.Client
	MaxRetries  int
	RetryDelay  time.Duration
}

// Client talks to the provider's video REST API with basic auth. Asset
// reads are retried; upload creation is not.
type Client struct {
	baseURL     string
	tokenID     string
	tokenSecret string
	http        *http.Client
	reads       failsafe.Executor[any]
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokenID:     cfg.TokenID,
		tokenSecret: cfg.TokenSecret,
		http:        hc,
		reads:       failsafe.With[any](newReadRetryPolicy(cfg.MaxRetries, cfg.RetryDelay)),
	}
}

// newReadRetryPolicy retries only errors the provider marked retryable.
func newReadRetryPolicy(maxRetries int, delay time.Duration) retrypolicy.RetryPolicy[any] {
	switch {
	case maxRetries < 0:
		maxRetries = 0
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			var pe *Error
			return errors.As(err, &pe) && pe.Retryable && pe.Code != "CANCELED"
		}).
		WithBackoff(delay, 10*delay).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		Build()
}

func (c *Client) FetchAsset(ctx context.Context, assetID string) (Asset, error) {
	if assetID == "" {
		return Asset{}, &Error{Category: "request", Code: "MISSING_ASSET_ID", UserMessage: "Asset id required", InternalMessage: "empty asset id"}
	}
	var out struct {
		Data Asset `json:"data"`
	}
	_, err := c.reads.WithContext(ctx).Get(func() (any, error) {
		return nil, c.do(ctx, http.MethodGet, "/assets/"+url.PathEscape(assetID), nil, &out)
	})
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return Asset{}, pe
		}
		return Asset{}, &Error{Category: "canceled", Code: "CANCELED", Retryable: true, UserMessage: "Request canceled", InternalMessage: err.Error()}
	}
	return out.Data, nil
}

func (c *Client) CreateUpload(ctx context.Context, req UploadRequest) (Upload, error) {
	policy := req.PlaybackPolicy
	if policy == "" {
		policy = "signed"
	}
	settings := map[string]any{
		"playback_policy": []string{policy},
	}
	if req.Passthrough != "" {
		settings["passthrough"] = req.Passthrough
	}
	if req.Title != "" {
		settings["meta"] = map[string]string{"title": req.Title}
	}
	body := map[string]any{
		"cors_origin":        req.CORSOrigin,
		"new_asset_settings": settings,
	}
	var out struct {
		Data Upload `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/uploads", body, &out); err != nil {
		return Upload{}, err
	}
	if out.Data.ID == "" {
		return Upload{}, &Error{Category: "upstream", Code: "INVALID_RESPONSE", Retryable: true, UserMessage: "Video provider returned no upload", InternalMessage: "upload response without id"}
	}
	return out.Data, nil
}

// CreateAsset is a POST like CreateUpload and is not retried either.
func (c *Client) CreateAsset(ctx context.Context, req AssetRequest) (Asset, error) {
	if req.InputURL == "" {
		return Asset{}, &Error{Category: "request", Code: "MISSING_INPUT_URL", UserMessage: "Video URL required", InternalMessage: "empty input url"}
	}
	policy := req.PlaybackPolicy
	if policy == "" {
		policy = "signed"
	}
	input := map[string]string{"url": req.InputURL}
	if req.Title != "" {
		input["name"] = req.Title
	}
	body := map[string]any{
		"inputs":          []map[string]string{input},
		"playback_policy": []string{policy},
		"encoding_tier":   "baseline",
	}
	if req.Passthrough != "" {
		body["passthrough"] = req.Passthrough
	}
	if req.Title != "" {
		body["meta"] = map[string]string{"title": req.Title}
	}
	var out struct {
		Data Asset `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/assets", body, &out); err != nil {
		return Asset{}, err
	}
	if out.Data.ID == "" {
		return Asset{}, &Error{Category: "upstream", Code: "INVALID_RESPONSE", Retryable: true, UserMessage: "Video provider returned no asset", InternalMessage: "asset response without id"}
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.SetBasicAuth(c.tokenID, c.tokenSecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		category, code := "network", "UPSTREAM_UNREACHABLE"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "UPSTREAM_TIMEOUT"
		}
		if errors.Is(err, context.Canceled) {
			category, code = "canceled", "CANCELED"
		}
		return &Error{Category: category, Code: code, Retryable: true, UserMessage: "Video provider unavailable", InternalMessage: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Category: "network", Code: "UPSTREAM_READ", Retryable: true, UserMessage: "Video provider unavailable", InternalMessage: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Category: "upstream", Code: "INVALID_RESPONSE", StatusCode: resp.StatusCode, Retryable: true, UserMessage: "Video provider returned an invalid response", InternalMessage: err.Error()}
	}
	return nil
}

func statusError(status int, payload []byte) *Error {
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	e := &Error{Category: "upstream", StatusCode: status, InternalMessage: msg}
	switch {
	case status == http.StatusNotFound:
		e.Code, e.UserMessage = "NOT_FOUND", "Video asset not found"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code, e.UserMessage = "UPSTREAM_AUTH", "Video provider rejected credentials"
	case status == http.StatusTooManyRequests:
		e.Code, e.Retryable, e.UserMessage = "UPSTREAM_RATE_LIMITED", true, "Video provider rate limited"
	case status >= 500:
		e.Code, e.Retryable, e.UserMessage = "UPSTREAM_5XX", true, "Video provider temporarily unavailable"
	default:
		e.Code, e.UserMessage = "UPSTREAM_4XX", "Video provider rejected the request"
	}
	return e
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == "NOT_FOUND"
}
