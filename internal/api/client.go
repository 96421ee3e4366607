// Package api is the HTTP client for the weapon optimization service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/smileynet/wopt/internal/weapon"
)

// ErrBusy is returned when the service keeps answering 503 with Retry-After
// after every allowed re-issue.
var ErrBusy = errors.New("api: optimizer busy")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string // First bytes of the response body
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

const bodyExcerpt = 512

const maxRetryAfterSecs = math.MaxInt64 / int64(time.Second)

// Client talks to the optimization API.
type Client struct {
	baseURL       string
	http          *http.Client
	userAgent     string
	busyRetries   int
	maxRetryDelay time.Duration
	logger        *slog.Logger
	sleep         func(context.Context, time.Duration) error
	now           func() time.Time
	group         singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithBusyRetries sets how many times a 503 with Retry-After is re-issued.
func WithBusyRetries(n int) Option {
	return func(c *Client) { c.busyRetries = n }
}

// WithMaxRetryDelay caps a single Retry-After sleep. Zero means no cap.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.maxRetryDelay = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleep replaces the context-aware sleep used between busy retries.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 2 * time.Minute},
		userAgent:   "wopt",
		busyRetries: 3,
		logger:      slog.New(slog.DiscardHandler),
		sleep:       sleepCtx,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Weapons fetches the weapon catalog.
func (c *Client) Weapons(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/weapons", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// WeaponData fetches the backend's precomputed snapshot.
func (c *Client) WeaponData(ctx context.Context) (weapon.DataMap, error) {
	var data weapon.DataMap
	if err := c.do(ctx, http.MethodGet, "/weapon-data", nil, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = weapon.DataMap{}
	}
	return data, nil
}

// Optimize requests the best build for req. Concurrent calls with the same
// request share one round trip. The shared call outlives a cancelled caller
// so the remaining waiters still get the answer.
func (c *Client) Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(req.Key(), func() (any, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return weapon.Result{}, fmt.Errorf("api: encoding request: %w", err)
		}
		var res weapon.Result
		if err := c.do(shared, http.MethodPost, "/optimize", body, &res); err != nil {
			return weapon.Result{}, err
		}
		if err := res.Validate(); err != nil {
			return weapon.Result{}, fmt.Errorf("api: optimize %s: %w", req.Weapon, err)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return weapon.Result{}, fmt.Errorf("api: optimize %s: %w", req.Weapon, ctx.Err())
	case r := <-ch:
		if r.Shared {
			c.logger.Debug("optimize request shared", "key", req.Key())
		}
		if r.Err != nil {
			return weapon.Result{}, r.Err
		}
		return r.Val.(weapon.Result), nil
	}
}

// TargetAll recomputes every weapon.
const TargetAll = "all"

// ClearCacheAndFetch asks the backend to recompute its snapshot for target:
// TargetAll, a weapon name, or a weapon, bullet or module type.
func (c *Client) ClearCacheAndFetch(ctx context.Context, target string) error {
	path := "/clear-cache-and-fetch?target=" + url.QueryEscape(target)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ServerReady probes the readiness endpoint once.
func (c *Client) ServerReady(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/server-ready", nil, nil)
}

// WaitReady polls ServerReady every interval until it succeeds or ctx ends.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	for {
		err := c.ServerReady(ctx)
		if err == nil {
			return nil
		}
		c.logger.Debug("server not ready", "err", err)
		if err := c.sleep(ctx, interval); err != nil {
			return fmt.Errorf("api: waiting for server: %w", err)
		}
	}
}

// do issues the request, re-issuing it after 503 + Retry-After, and decodes
// a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusServiceUnavailable {
			delay, ok := c.retryAfter(resp.Header.Get("Retry-After"))
			if ok {
				drain(resp)
				if attempt >= c.busyRetries {
					return fmt.Errorf("%w: %s %s after %d retries", ErrBusy, method, path, attempt)
				}
				c.logger.Info("optimizer busy, retrying", "path", path, "delay", delay, "attempt", attempt+1)
				if err := c.sleep(ctx, delay); err != nil {
					return fmt.Errorf("api: %s %s: %w", method, path, err)
				}
				continue
			}
		}

		return decode(resp, method, path, out)
	}
}

// decode closes resp after turning a non-2xx status into a *StatusError or
// decoding a JSON body into out.
func decode(resp *http.Response, method, path string, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerpt))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(excerpt)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", c.now().Sub(start))
	return resp, nil
}

// retryAfter parses a Retry-After value given as delta-seconds or an HTTP
// date. ok is false when the header is absent or unparseable.
func (c *Client) retryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		switch {
		case secs < 0:
			return 0, false
		case int64(secs) > maxRetryAfterSecs:
			// Beyond what a Duration holds: wait the cap, or give up without one.
			if c.maxRetryDelay <= 0 {
				return 0, false
			}
			return c.maxRetryDelay, true
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(c.now())
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}
	if c.maxRetryDelay > 0 && d > c.maxRetryDelay {
		d = c.maxRetryDelay
	}
	return d, true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyExcerpt))
	resp.Body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
