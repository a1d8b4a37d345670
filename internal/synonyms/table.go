// Package synonyms holds the canonical lab parameter dictionary, flattened
// once at startup into a read-only lookup table. The table is safe for
// unsynchronized concurrent reads and is never mutated after Load.
package synonyms

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed dictionary.yaml
var dictionaryYAML []byte

type Kind string

const (
	KindParameter Kind = "parameter"
	KindCategory  Kind = "category"
)

// Table maps lowercased term variants to canonical parameter and category
// names.
type Table struct {
	parameters map[string]string
	categories map[string]string
}

// Load parses the embedded dictionary and flattens it. Dictionary shape is
// category -> parameter -> list of variants, where a parameter entry may
// instead be a nested group of sub-parameters.
func Load() (*Table, error) {
	var raw map[string]map[string]interface{}
	if err := yaml.Unmarshal(dictionaryYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse synonym dictionary: %w", err)
	}

	t := &Table{
		parameters: make(map[string]string),
		categories: make(map[string]string),
	}

	for category, params := range raw {
		t.categories[strings.ToLower(category)] = category

		for param, entry := range params {
			switch v := entry.(type) {
			case []interface{}:
				t.addParameter(param, v)
			case map[string]interface{}:
				// Nested sub-parameter group; the group name itself is not
				// a searchable parameter.
				for subParam, subEntry := range v {
					variants, ok := subEntry.([]interface{})
					if !ok {
						return nil, fmt.Errorf("synonym dictionary: %q/%q/%q is neither a variant list nor a group", category, param, subParam)
					}
					t.addParameter(subParam, variants)
				}
			default:
				return nil, fmt.Errorf("synonym dictionary: %q/%q is neither a variant list nor a group", category, param)
			}
		}
	}

	return t, nil
}

func (t *Table) addParameter(canonical string, variants []interface{}) {
	t.parameters[strings.ToLower(canonical)] = canonical
	for _, v := range variants {
		if s, ok := v.(string); ok {
			t.parameters[strings.ToLower(s)] = canonical
		}
	}
}

// Normalize resolves a free-text term to its canonical form. Unknown terms
// are echoed back unchanged with recognized=false; empty input never fails.
func (t *Table) Normalize(term string, kind Kind) (normalized string, recognized bool) {
	if strings.TrimSpace(term) == "" {
		return term, false
	}

	lookup := t.parameters
	if kind == KindCategory {
		lookup = t.categories
	}

	canonical, ok := lookup[strings.ToLower(strings.TrimSpace(term))]
	if !ok {
		return term, false
	}
	return canonical, true
}

func (t *Table) ParameterCount() int {
	return len(t.parameters)
}

func (t *Table) CategoryCount() int {
	return len(t.categories)
}
