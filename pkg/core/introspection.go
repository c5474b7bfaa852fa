package core

import (
	"github.com/aretw0/introspection"
)

// ComponentState pairs a component type with its exported state.
type ComponentState struct {
	Type  string `json:"type"`
	State any    `json:"state,omitempty"`
}

// Inspect collects the observable state of v if it implements the
// introspection interfaces.
func Inspect(v any) ComponentState {
	st := ComponentState{Type: "unknown"}
	if comp, ok := v.(introspection.Component); ok {
		st.Type = comp.ComponentType()
	}
	if in, ok := v.(introspection.Introspectable); ok {
		st.State = in.State()
	}
	return st
}
