package fansly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/logger"
	"fanslydl/pkg/ratelimit"
	"fanslydl/pkg/retry"
)

// BaseURL is the API origin
const BaseURL = "https://apiv3.fansly.com"

const bodyPreviewLen = 200

// Options tune a Client; zero values select defaults
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Limiter     ratelimit.Limiter
	Backoff     retry.BackoffStrategy
	MaxAttempts int
	// OnDeviceID is called after the device id has been refreshed
	OnDeviceID func(id string, at time.Time)
}

// Client is the authenticated API client
type Client struct {
	httpClient  *http.Client
	baseURL     string
	session     *Session
	limiter     ratelimit.Limiter
	backoff     retry.BackoffStrategy
	maxAttempts int
	onDeviceID  func(string, time.Time)
	logger      logger.Logger
}

// NewClient creates a new API client
func NewClient(session *Session, opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := opts.BaseURL
	if base == "" {
		base = BaseURL
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = retry.NewErrorTypeBackoff()
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(base, "/"),
		session:     session,
		limiter:     limiter,
		backoff:     backoff,
		maxAttempts: attempts,
		onDeviceID:  opts.OnDeviceID,
		logger:      log,
	}
}

// Session returns the session the client signs with
func (c *Client) Session() *Session { return c.session }

// Start refreshes the device id if needed and performs the session handshake.
// Failure here is fatal for the run.
func (c *Client) Start(ctx context.Context) error {
	if err := c.ensureDeviceID(ctx); err != nil {
		return err
	}
	if _, err := c.session.SessionID(ctx); err != nil {
		return err
	}
	return nil
}

func (c *Client) ensureDeviceID(ctx context.Context) error {
	if !c.session.DeviceIDExpired() {
		return nil
	}

	id, err := c.FetchDeviceID(ctx)
	if err != nil {
		if current, _ := c.session.DeviceID(); current != "" {
			c.logger.WarnWithFields("device id refresh failed, keeping stale id", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		return errs.Wrap(errs.ErrorTypeConfig, err, "no device id available")
	}

	now := time.Now()
	c.session.SetDeviceID(id, now)
	c.logger.Debug("device id refreshed")
	if c.onDeviceID != nil {
		c.onDeviceID(id, now)
	}
	return nil
}

// FetchDeviceID asks the API for a fresh device id
func (c *Client) FetchDeviceID(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/device/id", nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("authorization", c.session.Token())
	req.Header.Set("User-Agent", c.session.UserAgent())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return "", err
	}

	var out apiResponse[deviceIDResponse]
	if err := c.decode(req, resp, body, &out); err != nil {
		return "", err
	}
	if !out.Success || out.Response == "" {
		return "", errs.New(errs.ErrorTypeParsing, "device id response carried no id")
	}
	return string(out.Response), nil
}

// getJSON performs a signed GET and decodes the response envelope into target.
// Authentication failures refresh the session once and retry.
func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	err := c.getWithRetry(ctx, path, target)
	if errs.IsType(err, errs.ErrorTypeAuth) && ctx.Err() == nil {
		c.logger.WarnWithFields("authentication rejected, refreshing session", map[string]interface{}{
			"path": path,
		})
		c.session.Invalidate()
		err = c.getWithRetry(ctx, path, target)
	}
	return err
}

func (c *Client) getWithRetry(ctx context.Context, path string, target interface{}) error {
	return retry.Do(func() error {
		return c.getOnce(ctx, path, target)
	}, &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	})
}

func (c *Client) getOnce(ctx context.Context, path string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.session.SessionID(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+withBypass(path), nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	for k, v := range c.session.Sign(path, c.session.NextTimestamp()) {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.session.UserAgent())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://fansly.com")
	req.Header.Set("Referer", "https://fansly.com/")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return err
	}
	if err := c.checkResponseStatus(req, resp, body); err != nil {
		return err
	}

	var envelope apiResponse[json.RawMessage]
	if err := c.decode(req, resp, body, &envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "API reported an unsuccessful request",
			Code:    resp.StatusCode,
		}
	}
	if target == nil || len(envelope.Response) == 0 {
		return nil
	}
	return c.decode(req, resp, envelope.Response, target)
}

// withBypass appends the service-worker bypass parameter
func withBypass(path string) string {
	if strings.Contains(path, "?") {
		return path + "&ngsw-bypass=true"
	}
	return path + "?ngsw-bypass=true"
}

// do performs an HTTP request with request logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return body, nil
}

func (c *Client) decode(req *http.Request, resp *http.Response, body []byte, target interface{}) error {
	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         req.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > bodyPreviewLen {
		s = s[:bodyPreviewLen] + "..."
	}
	return s
}

// checkResponseStatus maps HTTP status codes to typed errors
func (c *Client) checkResponseStatus(req *http.Request, resp *http.Response, body []byte) error {
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"path":   req.URL.Path,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: fmt.Sprintf("authentication failed: %s", preview(body)),
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		logger.LogRateLimit(c.logger, req.URL.Path, 60*time.Second)
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, preview(body)),
			Code:    resp.StatusCode,
		}
	}
}

// OpenMedia starts a plain download of a CDN URL.
// cookies, when present, are sent as CloudFront signing cookies.
// The caller must close the response body.
func (c *Client) OpenMedia(ctx context.Context, url string, cookies map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownload, err, "invalid media URL")
	}
	req.Header.Set("User-Agent", c.session.UserAgent())
	req.Header.Set("Origin", "https://fansly.com")
	req.Header.Set("Referer", "https://fansly.com/")
	for _, ck := range cloudFrontCookies(cookies) {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.Wrap(errs.ErrorTypeDownload, err, "media request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &errs.Error{
			Type:    errs.ErrorTypeDownload,
			Message: fmt.Sprintf("media request returned HTTP %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
	return resp, nil
}

var cloudFrontKeys = []string{"Policy", "Key-Pair-Id", "Signature"}

func cloudFrontCookies(metadata map[string]string) []*http.Cookie {
	var out []*http.Cookie
	for _, key := range cloudFrontKeys {
		if v, ok := metadata[key]; ok && v != "" {
			out = append(out, &http.Cookie{Name: "CloudFront-" + key, Value: v})
		}
	}
	return out
}
