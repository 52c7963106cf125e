// Package api is the REST client for the fleet backend. It implements
// the collaborator interfaces declared in internal/fleet: status and
// collection fetches for the synchronizer, tab actions for the tab
// manager, and chat fetches for the stream selector, plus the mutating
// actions the dashboard offers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var apiLog = logging.ForComponent(logging.CompAPI)

// Config holds client construction parameters.
type Config struct {
	// BaseURL is the backend root, e.g. "http://127.0.0.1:3001/api".
	BaseURL string

	// Timeout bounds one request end to end. This is also the only
	// bound on a hung fetch; the poll loops deliberately add none of
	// their own. Default 30 s.
	Timeout time.Duration

	// RequestsPerSecond caps the request rate across all loops.
	// Zero means 20.
	RequestsPerSecond float64
}

// Client is a thread-safe backend client shared by every poll loop.
type Client struct {
	base    string
	httpc   *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base
}

// do performs one JSON request. A non-2xx response becomes a
// *StatusError; anything else that goes wrong is a transport error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// getShared deduplicates concurrent identical GETs: event-feed nudges
// and the regular cycle can ask for the same collection at once, and one
// response serves both.
func (c *Client) getShared(ctx context.Context, path string, newOut func() any) (any, error) {
	out, err, _ := c.group.Do(path, func() (any, error) {
		v := newOut()
		if err := c.do(ctx, http.MethodGet, path, nil, v); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		apiLog.Debug("request_failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return out, err
}

func pathEscape(id string) string {
	return url.PathEscape(id)
}
