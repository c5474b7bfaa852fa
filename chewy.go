package chewy

import (
	"log/slog"

	"github.com/mpospelov/chewy/internal/platform"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
	"github.com/mpospelov/chewy/pkg/indexer"
	"github.com/mpospelov/chewy/pkg/journal"
	"github.com/mpospelov/chewy/pkg/specification"
)

// Version is the library version reported by the CLI.
const Version = "0.3.0"

// --- Configuration ---

// Option defines a functional option for configuring a Client.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithConfig uses cfg instead of loading one.
func WithConfig(cfg config.Config) Option {
	return platform.WithConfig(cfg)
}

// WithConfigFile loads the configuration from a YAML file.
func WithConfigFile(path string) Option {
	return platform.WithConfigFile(path)
}

// WithRegistry sets the declared indices.
func WithRegistry(r *index.Registry) Option {
	return platform.WithRegistry(r)
}

// WithStore injects a document store.
func WithStore(s core.Store) Option {
	return platform.WithStore(s)
}

// WithMustExist makes the filesystem store require an existing directory.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithWatcherErrorHandler receives runtime failures of store watchers.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// Client wires the journal, specification and indexing layers over one
// document store.
type Client struct {
	store    core.Store
	cfg      config.Config
	registry *index.Registry
	logger   *slog.Logger

	journal *journal.Service
	specs   *specification.Store
}

// New creates a Client over the store addressed by uri (see OpenStore).
func New(uri string, opts ...Option) (*Client, error) {
	c, err := platform.Assemble(uri, opts...)
	if err != nil {
		return nil, err
	}
	logger := c.Logger
	return &Client{
		store:    c.Store,
		cfg:      c.Config,
		registry: c.Registry,
		logger:   logger,
		journal:  journal.NewService(c.Store, c.Config, c.Registry, logger),
		specs:    specification.NewStore(c.Store, c.Config),
	}, nil
}

// OpenStore opens a document store by URI: memory://, file:///path (or a
// bare path) and postgres://.
func OpenStore(uri string, opts ...Option) (core.Store, error) {
	return platform.OpenStore(uri, opts...)
}

// FindConfig looks upwards from startDir for a chewy.yml.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}

// --- Accessors ---

// Store returns the document store.
func (c *Client) Store() core.Store { return c.store }

// Config returns the process configuration.
func (c *Client) Config() config.Config { return c.cfg }

// Registry returns the declared indices.
func (c *Client) Registry() *index.Registry { return c.registry }

// Journal returns the journal service.
func (c *Client) Journal() *journal.Service { return c.journal }

// Specifications returns the specification store.
func (c *Client) Specifications() *specification.Store { return c.specs }

// Specification returns the specification of idx.
func (c *Client) Specification(idx *index.Index) *specification.Specification {
	return specification.New(idx, c.specs, c.cfg)
}

// Indexer returns an indexer logging through the client's logger.
func (c *Client) Indexer(opts ...indexer.Option) *indexer.Indexer {
	opts = append([]indexer.Option{indexer.WithLogger(c.logger)}, opts...)
	return indexer.New(c.store, c.cfg, c.journal, c.specs, opts...)
}

// State returns the observable state of the store and the journal.
func (c *Client) State() []core.ComponentState {
	return []core.ComponentState{core.Inspect(c.store), core.Inspect(c.journal)}
}

// Close releases store resources.
func (c *Client) Close() error {
	if closer, ok := c.store.(core.Closer); ok {
		return closer.Close()
	}
	return nil
}
