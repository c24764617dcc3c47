// Package item models the records the backend returns as a tagged union.
//
// Each resource type is its own struct; they share nothing but the Item
// interface, whose Display method gives list views a uniform row without
// probing optional fields ad hoc.
package item

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags an Item variant.
type Kind string

const (
	KindJudgment Kind = "judgment"
	KindAct      Kind = "act"
	KindMapping  Kind = "mapping"
	KindBookmark Kind = "bookmark"
	KindDownload Kind = "download"
	KindNote     Kind = "note"
	KindEvent    Kind = "event"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindJudgment, KindAct, KindMapping, KindBookmark, KindDownload, KindNote, KindEvent:
		return k, nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// Item is implemented by every record variant.
type Item interface {
	Kind() Kind
	Key() string
	Display() Row
}

// Row is the display projection of an Item used by list views.
type Row struct {
	Kind     Kind   `json:"kind"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Date     string `json:"date,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Flex is a scalar the backend may send as a number or a string
// (identifiers, years). It always holds the decimal/string form.
type Flex string

// ID is a record identifier.
type ID = Flex

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Flex(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex scalar: %w", err)
	}
	*id = Flex(n.String())
	return nil
}

func (id Flex) String() string { return string(id) }

// Rows projects a slice of variants to display rows.
func Rows[T Item](items []T) []Row {
	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = it.Display()
	}
	return rows
}

// joinNonEmpty joins the non-empty parts with sep.
func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
