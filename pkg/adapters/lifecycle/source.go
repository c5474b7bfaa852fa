// Package lifecycle exposes store change events as a lifecycle.Source, so a
// supervisor can consume journal writes like any other event stream.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/mpospelov/chewy/pkg/core"
)

// Filter decides which store events are forwarded.
type Filter func(core.Event) bool

// OnlyTypes forwards events of the given types.
func OnlyTypes(types ...core.EventType) Filter {
	return func(e core.Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	}
}

type storeSource struct {
	events <-chan core.Event
	keep   Filter
	out    chan lifecycle.Event
}

// NewSource bridges a store event channel, such as the one returned by
// core.Watchable.Watch, to a lifecycle.Source. A nil filter forwards
// everything.
func NewSource(events <-chan core.Event, keep Filter) lifecycle.Source {
	return &storeSource{
		events: events,
		keep:   keep,
		out:    make(chan lifecycle.Event),
	}
}

func (s *storeSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start forwards events until ctx is done or the store channel closes, then
// closes Events.
func (s *storeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if s.keep != nil && !s.keep(e) {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
