package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Related is one entry of a concept's manually curated relationship list.
// Legacy rows only carry a title; ID is empty for those.
type Related struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Matches reports whether r references the concept identified by id or title.
func (r Related) Matches(id, title string) bool {
	if id != "" && r.ID == id {
		return true
	}
	title = strings.TrimSpace(title)
	return title != "" && strings.EqualFold(strings.TrimSpace(r.Title), title)
}

// RelatedList is the canonical form of the relatedConcepts field.
//
// Stored rows come in several historical encodings: absent or null, a JSON
// array serialized into a string, a native array of {id, title} objects, and
// arrays of bare title strings. UnmarshalJSON and Scan accept all of them;
// MarshalJSON and Value always produce an array of objects.
type RelatedList []Related

// Contains reports whether any entry references the given concept.
func (l RelatedList) Contains(id, title string) bool {
	for _, r := range l {
		if r.Matches(id, title) {
			return true
		}
	}
	return false
}

// Without returns a copy of l with every entry referencing the concept removed.
func (l RelatedList) Without(id, title string) RelatedList {
	out := make(RelatedList, 0, len(l))
	for _, r := range l {
		if r.Matches(id, title) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MarshalJSON encodes a nil list as an empty array.
func (l RelatedList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Related(l))
}

// UnmarshalJSON decodes any of the historical encodings.
func (l *RelatedList) UnmarshalJSON(data []byte) error {
	out, err := decodeRelated(data, true)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// Value implements the driver.Valuer interface for database storage
func (l RelatedList) Value() (driver.Value, error) {
	return l.MarshalJSON()
}

// Scan implements the sql.Scanner interface for database retrieval
func (l *RelatedList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = RelatedList{}
		return nil
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("scan related concepts: unsupported type %T", value)
	}
}

// ParseRelated decodes a raw relatedConcepts value as it may appear in a
// request body or a legacy row.
func ParseRelated(raw string) (RelatedList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RelatedList{}, nil
	}
	if !json.Valid([]byte(raw)) {
		return RelatedList{{Title: raw}}, nil
	}
	return decodeRelated([]byte(raw), true)
}

// decodeRelated unwraps at most one level of string encoding.
func decodeRelated(data []byte, unwrap bool) (RelatedList, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return RelatedList{}, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode related concepts: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return RelatedList{}, nil
		}
		if unwrap && json.Valid([]byte(s)) {
			return decodeRelated([]byte(s), false)
		}
		return RelatedList{{Title: s}}, nil
	case '{':
		r, ok, err := decodeRelatedItem(data)
		if err != nil {
			return nil, err
		}
		if !ok {
			return RelatedList{}, nil
		}
		return RelatedList{r}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode related concepts: %w", err)
		}
		out := make(RelatedList, 0, len(items))
		for _, item := range items {
			r, ok, err := decodeRelatedItem(item)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, r)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode related concepts: unexpected value %q", truncate(string(data), 32))
	}
}

func decodeRelatedItem(data []byte) (Related, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Related{}, false, nil
	}

	if data[0] == '"' {
		var title string
		if err := json.Unmarshal(data, &title); err != nil {
			return Related{}, false, fmt.Errorf("decode related title: %w", err)
		}
		title = strings.TrimSpace(title)
		return Related{Title: title}, title != "", nil
	}

	var obj struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return Related{}, false, fmt.Errorf("decode related entry: %w", err)
	}

	r := Related{ID: rawID(obj.ID), Title: strings.TrimSpace(obj.Title)}
	return r, r.ID != "" || r.Title != "", nil
}

// rawID accepts string and numeric ids.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
