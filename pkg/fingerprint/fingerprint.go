// Package fingerprint turns an index definition into canonical bytes that can
// be stored, compared and hashed.
//
// Canonical form is compact JSON with the keys of every object sorted, so two
// definitions built with different key insertion order encode to the same
// bytes. Field declarations live in a mapping's "properties" object, which
// makes their declaration order insignificant; arrays keep their order.
package fingerprint

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Empty is the canonical form of an absent definition.
const Empty = "{}"

// Definition is the structured form of an index definition: a "settings" and
// a "mappings" object.
type Definition map[string]any

// New builds a Definition from settings and mappings.
func New(settings, mappings map[string]any) Definition {
	if settings == nil {
		settings = map[string]any{}
	}
	if mappings == nil {
		mappings = map[string]any{}
	}
	return Definition{"settings": settings, "mappings": mappings}
}

// Settings returns the settings object, or nil.
func (d Definition) Settings() map[string]any {
	m, _ := d["settings"].(map[string]any)
	return m
}

// Mappings returns the mappings object, or nil.
func (d Definition) Mappings() map[string]any {
	m, _ := d["mappings"].(map[string]any)
	return m
}

// Canonicalize encodes def in canonical form.
func Canonicalize(def Definition) ([]byte, error) {
	if len(def) == 0 {
		return []byte(Empty), nil
	}
	// Round-trip through a generic value first so typed maps, slices and
	// structs nested in def all end up as sorted JSON objects and arrays.
	raw, err := marshal(map[string]any(def))
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize definition: %w", err)
	}
	return marshal(generic)
}

// Parse decodes canonical bytes back to a Definition.
func Parse(canonical []byte) (Definition, error) {
	def := Definition{}
	if len(bytes.TrimSpace(canonical)) == 0 {
		return def, nil
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("invalid fingerprint: %w", err)
	}
	return def, nil
}

// Encode returns the storable form of canonical bytes.
func Encode(canonical []byte) string {
	return base64.StdEncoding.EncodeToString(canonical)
}

// Decode reverses Encode.
func Decode(stored string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint encoding: %w", err)
	}
	return b, nil
}

// Hash returns the content identity of canonical bytes.
func Hash(canonical []byte) string {
	return strconv.FormatUint(xxhash.Sum64(canonical), 16)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
