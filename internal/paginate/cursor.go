// Package paginate implements cursor-based list pagination: the page and
// cursor types shared with the api client, and the Controller that owns a
// list's accumulated items.
package paginate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hpungsan/juris/internal/filter"
)

// CursorPrefix prefixes each keyset cursor field in query parameters.
const CursorPrefix = "cursor_"

// OffsetParam is the query parameter of offset cursors.
const OffsetParam = "offset"

// Cursor is an opaque position token. It is sent back exactly as received.
type Cursor struct {
	params url.Values
}

// KeysetCursor builds a cursor from a next_cursor object such as
// {"decision_date": "2024-01-01", "id": 5}. Null fields are dropped; an
// object with no usable field yields nil.
func KeysetCursor(fields map[string]any) (*Cursor, error) {
	params := url.Values{}
	for k, v := range fields {
		s, ok, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("cursor field %q: %w", k, err)
		}
		if ok {
			params.Set(CursorPrefix+k, s)
		}
	}
	if len(params) == 0 {
		return nil, nil
	}
	return &Cursor{params: params}, nil
}

// OffsetCursor builds a cursor for offset-paginated resources.
func OffsetCursor(offset int) *Cursor {
	params := url.Values{}
	params.Set(OffsetParam, strconv.Itoa(max(offset, 0)))
	return &Cursor{params: params}
}

// CursorFromParams extracts cursor parameters (cursor_* and offset) from a
// query, as carried by next-page URLs. Returns nil when none are present.
func CursorFromParams(q url.Values) *Cursor {
	params := url.Values{}
	for k, vs := range q {
		if len(vs) == 0 || vs[0] == "" {
			continue
		}
		if strings.HasPrefix(k, CursorPrefix) || k == OffsetParam {
			params.Set(k, vs[0])
		}
	}
	if len(params) == 0 {
		return nil
	}
	return &Cursor{params: params}
}

// Params returns a copy of the cursor's query parameters.
func (c *Cursor) Params() url.Values {
	out := url.Values{}
	if c == nil {
		return out
	}
	for k, vs := range c.params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Offset returns the offset of an offset cursor.
func (c *Cursor) Offset() (int, bool) {
	if c == nil || !c.params.Has(OffsetParam) {
		return 0, false
	}
	n, err := strconv.Atoi(c.params.Get(OffsetParam))
	if err != nil {
		return 0, false
	}
	return n, true
}

// String encodes the cursor as a sorted query string.
func (c *Cursor) String() string {
	if c == nil {
		return ""
	}
	return c.params.Encode()
}

// Page is one fetched slice of a list. Immutable once received.
type Page[T any] struct {
	Items   []T
	Next    *Cursor
	HasMore bool
}

// Query is everything needed to fetch one page.
type Query struct {
	Filters filter.State
	Cursor  *Cursor
	Limit   int
}

// Values encodes filters, limit and cursor as query parameters.
func (q Query) Values() url.Values {
	v := q.Filters.Params()
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for k, vs := range q.Cursor.Params() {
		v[k] = vs
	}
	return v
}

func scalarString(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case json.Number:
		return t.String(), true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	default:
		return "", false, fmt.Errorf("unsupported value of type %T", v)
	}
}
