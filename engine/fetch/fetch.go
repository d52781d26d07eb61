package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/forgeci/forgecfg/engine/core"
	"github.com/forgeci/forgecfg/pkg/logger"
)

// RevisionHeader carries the config revision actually served.
const RevisionHeader = "X-Config-Revision"

const (
	defaultTimeout   = 30 * time.Second
	defaultAttempts  = 5
	defaultBaseDelay = 2 * time.Second
)

// Client downloads project config archives from a config service at an exact
// pinned revision. Transient failures (network errors, 5xx) are retried with
// exponential backoff and jitter; client errors fail immediately.
type Client struct {
	http      *resty.Client
	attempts  uint64
	baseDelay time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = uint64(n)
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      resty.New().SetTimeout(defaultTimeout),
		attempts:  defaultAttempts,
		baseDelay: defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Options describes one fetch: the service URL, the exact revision to pin,
// and the destination directory.
type Options struct {
	URL      string
	Revision string
	Dest     string
	// Force allows writing into a non-empty destination.
	Force bool
}

// Fetch downloads the config payload for the pinned revision into
// Dest/project.yaml. A non-empty destination is refused unless Force is set.
func (c *Client) Fetch(ctx context.Context, opts Options) error {
	log := logger.FromContext(ctx)
	if opts.URL == "" || opts.Revision == "" {
		return core.NewError(nil, "FETCH_BAD_REQUEST", map[string]any{
			"url":      opts.URL,
			"revision": opts.Revision,
		})
	}
	if err := checkDest(opts.Dest, opts.Force); err != nil {
		return err
	}

	var body []byte
	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.baseDelay))
	backoff = retry.WithJitterPercent(20, backoff)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("revision", opts.Revision).
			Get(opts.URL)
		if err != nil {
			log.Warn("fetch attempt failed", "url", opts.URL, "error", err)
			return retry.RetryableError(err)
		}
		switch {
		case resp.StatusCode() >= 500:
			log.Warn("config service error", "url", opts.URL, "status", resp.StatusCode())
			return retry.RetryableError(fmt.Errorf("config service returned %d", resp.StatusCode()))
		case resp.StatusCode() != 200:
			return core.NewError(nil, "FETCH_REJECTED", map[string]any{
				"url":    opts.URL,
				"status": resp.StatusCode(),
			})
		}
		if served := resp.Header().Get(RevisionHeader); served != "" && served != opts.Revision {
			return core.NewError(nil, "FETCH_REVISION_MISMATCH", map[string]any{
				"requested": opts.Revision,
				"served":    served,
			})
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return coreErr
		}
		return core.NewError(err, "FETCH_FAILED", map[string]any{
			"url":      opts.URL,
			"revision": opts.Revision,
		})
	}

	if err := os.MkdirAll(opts.Dest, 0o755); err != nil {
		return core.NewError(err, "FETCH_DEST_UNWRITABLE", map[string]any{"dest": opts.Dest})
	}
	target := filepath.Join(opts.Dest, "project.yaml")
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return core.NewError(err, "FETCH_DEST_UNWRITABLE", map[string]any{"dest": target})
	}
	log.Info("fetched project config", "revision", opts.Revision, "dest", target, "bytes", len(body))
	return nil
}

func checkDest(dest string, force bool) error {
	if dest == "" {
		return core.NewError(nil, "FETCH_BAD_REQUEST", map[string]any{"reason": "destination is required"})
	}
	entries, err := os.ReadDir(dest)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return core.NewError(err, "FETCH_DEST_UNWRITABLE", map[string]any{"dest": dest})
	}
	if len(entries) > 0 && !force {
		return core.NewError(nil, "FETCH_DEST_UNCLEAN", map[string]any{"dest": dest})
	}
	return nil
}
