package tf

import (
	"context"
	"strings"
	"time"

	"tfview/internal/changeset"
	"tfview/internal/logging"

	"go.uber.org/zap"
)

// Client runs tf commands and turns their output into typed results.
type Client struct {
	runner  Runner
	root    string
	timeout time.Duration
	logger  *logging.Logger
}

type ClientOption func(*Client)

// WithTimeout bounds every invocation. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithWorkingDir runs every command inside the workspace root.
func WithWorkingDir(root string) ClientOption {
	return func(c *Client) { c.root = root }
}

func NewClient(runner Runner, opts ...ClientOption) *Client {
	c := &Client{runner: runner, logger: logging.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, inv Invocation) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if inv.Dir == "" {
		inv.Dir = c.root
	}

	start := time.Now()
	res, err := c.runner.Run(ctx, inv)
	fields := []zap.Field{
		zap.String("command", string(inv.Command)),
		zap.Strings("args", inv.Args),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("tf command failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	c.logger.Debug("tf command finished", fields...)
	return res, nil
}

// Status queries pending changes under root.
func (c *Client) Status(ctx context.Context, root string) (StatusResult, error) {
	res, err := c.run(ctx, StatusInvocation(root))
	if err != nil {
		return StatusResult{}, err
	}
	return ParseStatus(res.Stdout), nil
}

// History returns up to count changesets touching path, newest first.
func (c *Client) History(ctx context.Context, path string, count int) ([]changeset.Changeset, error) {
	res, err := c.run(ctx, HistoryInvocation(path, count))
	if err != nil {
		return nil, err
	}
	return changeset.ParseHistory(res.Stdout), nil
}

// PreviousVersions returns the changeset itself followed by its predecessor, if any.
func (c *Client) PreviousVersions(ctx context.Context, path string, changesetID int) ([]changeset.Changeset, error) {
	res, err := c.run(ctx, PreviousVersionInvocation(path, changesetID))
	if err != nil {
		return nil, err
	}
	return changeset.ParseHistory(res.Stdout), nil
}

// View returns file content at version, or the latest server version when version is empty.
func (c *Client) View(ctx context.Context, path, version string) (string, error) {
	res, err := c.run(ctx, ViewInvocation(path, version))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func (c *Client) Checkout(ctx context.Context, path string, recursive bool) (string, error) {
	return c.message(ctx, CheckoutInvocation(path, recursive))
}

func (c *Client) Get(ctx context.Context, path string) (string, error) {
	return c.message(ctx, GetInvocation(path))
}

func (c *Client) Undo(ctx context.Context, path string) (string, error) {
	return c.message(ctx, UndoInvocation(path))
}

func (c *Client) message(ctx context.Context, inv Invocation) (string, error) {
	res, err := c.run(ctx, inv)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
