package platform

import (
	"log/slog"

	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// options holds the internal configuration of a Client.
type options struct {
	store        core.Store
	logger       *slog.Logger
	config       *config.Config
	configPath   string
	registry     *index.Registry
	mustExist    bool
	errorHandler func(error)
}

// Option defines a functional option for configuring a Client.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig uses cfg as is. It takes precedence over WithConfigFile.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithConfigFile loads the configuration from a YAML file (plus CHEWY_*
// environment overrides).
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithRegistry sets the declared indices used to resolve journal entries.
func WithRegistry(r *index.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStore injects a document store. The URI passed to New is then ignored.
func WithStore(s core.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithMustExist makes the filesystem store fail when its directory is
// missing instead of creating it.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithWatcherErrorHandler receives runtime failures of store watchers.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

