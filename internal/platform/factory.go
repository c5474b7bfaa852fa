package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mpospelov/chewy/pkg/adapters/fs"
	"github.com/mpospelov/chewy/pkg/adapters/memory"
	"github.com/mpospelov/chewy/pkg/adapters/postgres"
	"github.com/mpospelov/chewy/pkg/config"
	"github.com/mpospelov/chewy/pkg/core"
	"github.com/mpospelov/chewy/pkg/index"
)

// Components is everything a Client is assembled from.
type Components struct {
	Store    core.Store
	Config   config.Config
	Registry *index.Registry
	Logger   *slog.Logger
}

// Assemble resolves options into components. uri selects the store unless
// one was injected:
//
//	memory://                       in-process store
//	file:///var/lib/chewy, ./data   filesystem store
//	postgres://user@host/db         PostgreSQL store
func Assemble(uri string, opts ...Option) (*Components, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var cfg config.Config
	switch {
	case o.config != nil:
		cfg = *o.config
	default:
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	registry := o.registry
	if registry == nil {
		registry = index.NewRegistry()
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = OpenStore(uri, opts...); err != nil {
			return nil, err
		}
	}

	return &Components{Store: store, Config: cfg, Registry: registry, Logger: o.logger}, nil
}

// OpenStore opens the document store addressed by uri.
func OpenStore(uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	scheme, rest := splitScheme(uri)
	switch scheme {
	case "memory":
		return memory.NewStore(), nil
	case "postgres", "postgresql":
		s, err := postgres.NewStore(postgres.Config{DSN: uri, Logger: o.logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file", "":
		path := rest
		if scheme == "file" {
			u, err := url.Parse(uri)
			if err != nil {
				return nil, fmt.Errorf("%w: store uri %q: %v", core.ErrInvalidInput, uri, err)
			}
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%w: empty store path", core.ErrInvalidInput)
		}
		s := fs.NewStore(fs.Config{
			Path:         filepath.Clean(path),
			MustExist:    o.mustExist,
			Logger:       o.logger,
			ErrorHandler: o.errorHandler,
		})
		if err := s.Initialize(context.Background()); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store scheme %q", core.ErrInvalidInput, scheme)
	}
}

func splitScheme(uri string) (string, string) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", uri
	}
	return strings.ToLower(scheme), rest
}
