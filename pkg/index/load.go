package index

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type definitionsFile struct {
	Indices []*Index `yaml:"indices"`
}

// LoadDefinitions reads index declarations from YAML:
//
//	indices:
//	  - name: places
//	    settings:
//	      analysis: {}
//	    types:
//	      - name: city
//	        fields:
//	          - name: founded_on
//	            type: date
//
// Loaded types have no adapter; bind one with SetAdapter before importing.
func LoadDefinitions(r io.Reader) ([]*Index, error) {
	var file definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	seen := make(map[string]bool, len(file.Indices))
	for _, idx := range file.Indices {
		if idx.Name == "" {
			return nil, fmt.Errorf("invalid definitions: index without name")
		}
		if seen[idx.Name] {
			return nil, fmt.Errorf("invalid definitions: duplicate index %q", idx.Name)
		}
		seen[idx.Name] = true
		for _, t := range idx.Types {
			if t.Name == "" {
				return nil, fmt.Errorf("invalid definitions: type without name in %q", idx.Name)
			}
			t.index = idx
		}
	}
	return file.Indices, nil
}
