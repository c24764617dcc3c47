// Package filter holds list filter criteria and the debounced panel that edits them.
package filter

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// State maps a filter name to its value. Empty values mean "unset" and are
// never sent to the backend.
type State map[string]string

// Clone returns an independent copy.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Get returns the trimmed value for name.
func (s State) Get(name string) string {
	return strings.TrimSpace(s[name])
}

// IsEmpty reports whether no filter has a value.
func (s State) IsEmpty() bool {
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Equal compares the set values of two states, ignoring empty entries.
func (s State) Equal(other State) bool {
	return maps.Equal(s.compact(), other.compact())
}

// Params encodes the set values as query parameters.
func (s State) Params() url.Values {
	v := url.Values{}
	for name, value := range s.compact() {
		v.Set(name, value)
	}
	return v
}

// Names returns the names of set filters in sorted order.
func (s State) Names() []string {
	return slices.Sorted(maps.Keys(s.compact()))
}

func (s State) compact() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Field describes one input of a filter panel.
type Field struct {
	Name    string
	Label   string
	Default string
}

// Schema is the ordered set of fields a resource supports.
type Schema []Field

// Has reports whether the schema defines name.
func (s Schema) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Defaults returns a state with every field at its default.
func (s Schema) Defaults() State {
	st := make(State, len(s))
	for _, f := range s {
		st[f.Name] = f.Default
	}
	return st
}

// Schemas for the paginated resources.
var (
	JudgmentSchema = Schema{
		{Name: "search", Label: "Search"},
		{Name: "court_name", Label: "Court"},
		{Name: "year", Label: "Year"},
		{Name: "judge", Label: "Judge"},
		{Name: "cnr", Label: "CNR"},
		{Name: "from_date", Label: "From date"},
		{Name: "to_date", Label: "To date"},
	}

	MappingSchema = Schema{
		{Name: "search", Label: "Search"},
		{Name: "mapping_type", Label: "Mapping type"},
		{Name: "source_section", Label: "Source section"},
	}

	ActSchema = Schema{
		{Name: "search", Label: "Search"},
		{Name: "year", Label: "Year"},
		{Name: "act_type", Label: "Type"},
		{Name: "state", Label: "State"},
	}

	BookmarkSchema = Schema{
		{Name: "folder", Label: "Folder"},
		{Name: "item_type", Label: "Type"},
	}
)
