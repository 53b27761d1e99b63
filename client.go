package docstore

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/autom8ter/docstore/driver"
	"github.com/autom8ter/docstore/driver/embedded"
	"github.com/autom8ter/docstore/errors"
	"github.com/prometheus/client_golang/prometheus"

	// backends are registered on import
	_ "github.com/autom8ter/docstore/driver/mongodb"
	_ "github.com/autom8ter/docstore/kv/badger"
	_ "github.com/autom8ter/docstore/kv/redis"
	_ "github.com/autom8ter/docstore/kv/tikv"
)

// Client is a handle to a document store backend. A Client is safe for concurrent reads.
type Client struct {
	driver  driver.Driver
	logger  Logger
	metrics *metrics
	scheme  string
	mu      sync.RWMutex
	closed  bool
}

// Option configures a client
type Option func(o *options)

type options struct {
	logger     Logger
	registerer prometheus.Registerer
}

// WithLogger sets the client's logger
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers the client's operation metrics with the registerer
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// Connect opens the backend selected by the address scheme and verifies it is reachable.
// mongodb:// and mongodb+srv:// addresses use the mongodb driver. mem://, badger://, redis://, rediss:// and tikv://
// addresses use the embedded engine on the matching key value provider.
func Connect(ctx context.Context, address string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		logger, err := NewLogger("info", map[string]any{})
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to create logger")
		}
		o.logger = logger
	}
	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(address)
	if err != nil || u.Scheme == "" {
		return nil, errors.New(errors.Connection, "invalid address: '%s'", address)
	}
	var d driver.Driver
	if opener, ok := driver.Lookup(u.Scheme); ok {
		d, err = opener(ctx, address)
	} else {
		var engine *embedded.Engine
		if engine, err = embedded.Open(ctx, address); err == nil {
			d = engine
		}
	}
	if err != nil {
		o.logger.Error(ctx, "failed to connect", err, map[string]any{"scheme": u.Scheme})
		return nil, errors.Wrap(err, errors.Connection, "failed to connect")
	}
	if err := d.Ping(ctx); err != nil {
		_ = d.Close(ctx)
		o.logger.Error(ctx, "failed to ping", err, map[string]any{"scheme": u.Scheme})
		return nil, errors.Wrap(err, errors.Connection, "failed to ping backend")
	}
	o.logger.Debug(ctx, "connected", map[string]any{"scheme": u.Scheme})
	return &Client{
		driver:  d,
		logger:  o.logger,
		metrics: m,
		scheme:  u.Scheme,
	}, nil
}

// ConnectConfig connects with the resolved address, log level and metrics of the config
func ConnectConfig(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	address, err := cfg.ResolvedAddress()
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Level(), map[string]any{})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to create logger")
	}
	defaults := []Option{WithLogger(logger)}
	if cfg.Metrics {
		defaults = append(defaults, WithMetrics(prometheus.DefaultRegisterer))
	}
	return Connect(ctx, address, append(defaults, opts...)...)
}

// do runs fn unless the client is closed, recording metrics and logging the outcome
func (c *Client) do(ctx context.Context, operation, collection string, fn func() error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.ErrClosedHandle
	}
	start := time.Now()
	err := fn()
	c.metrics.observe(operation, start, err)
	tags := map[string]any{
		"operation": operation,
		"scheme":    c.scheme,
	}
	if collection != "" {
		tags["collection"] = collection
	}
	switch {
	case err == nil:
		c.logger.Debug(ctx, operation, tags)
	case errors.Is(err, errors.NotFound):
		c.logger.Debug(ctx, operation, tags)
	default:
		c.logger.Error(ctx, operation+" failed", err, tags)
	}
	return err
}

// Ping checks that the backend is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", "", func() error {
		return c.driver.Ping(ctx)
	})
}

// ListCollections returns the names of the collections in the store
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := c.do(ctx, "list_collections", "", func() error {
		var err error
		names, err = c.driver.ListCollections(ctx)
		return err
	})
	return names, err
}

// DropCollection removes the collection with its documents and indexes
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	return c.do(ctx, "drop_collection", collection, func() error {
		return c.driver.DropCollection(ctx, collection)
	})
}

// SetValidator attaches a json schema to the collection. Inserts and updates that violate it fail with a validation error.
// An empty schema removes the validator.
func (c *Client) SetValidator(ctx context.Context, collection string, schema []byte) error {
	return c.do(ctx, "set_validator", collection, func() error {
		return c.driver.SetValidator(ctx, collection, schema)
	})
}

// Close releases the backend. Every later call, including Close, returns a closed handle error.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrClosedHandle
	}
	c.closed = true
	c.logger.Debug(ctx, "closing", map[string]any{"scheme": c.scheme})
	return c.driver.Close(ctx)
}
