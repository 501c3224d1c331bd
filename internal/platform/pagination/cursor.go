package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Direction indicates the pagination direction.
type Direction string

const (
	// DirectionForward selects rows whose key sorts after the cursor.
	DirectionForward Direction = "fwd"
	// DirectionBackward selects rows whose key sorts before the cursor.
	DirectionBackward Direction = "bwd"
)

// ValueKind is the type tag of a cursor value.
type ValueKind string

const (
	KindInt    ValueKind = "int"
	KindString ValueKind = "string"
)

// CursorValue is one named component of the boundary row's ordering key.
type CursorValue struct {
	Name   string    `json:"n"`
	Kind   ValueKind `json:"k"`
	Int    int64     `json:"i,omitempty"`
	String string    `json:"s,omitempty"`
}

// IntValue builds an integer cursor value.
func IntValue(name string, value int64) CursorValue {
	return CursorValue{Name: name, Kind: KindInt, Int: value}
}

// StringValue builds a string cursor value.
func StringValue(name string, value string) CursorValue {
	return CursorValue{Name: name, Kind: KindString, String: value}
}

// Cursor is the decoded state behind an opaque page token.
type Cursor struct {
	Values []CursorValue `json:"v"`
	Dir    Direction     `json:"dir"`
	// Reverse temporarily flips the sort order so a previous page is read
	// from its near edge.
	Reverse bool `json:"rev,omitempty"`
	// FilterHash invalidates tokens when the filter changes.
	FilterHash string `json:"filter_hash,omitempty"`
	// OrderHash invalidates tokens when the ordering changes.
	OrderHash string `json:"order_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque token. Malformed tokens are rejected.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("invalid cursor direction: %q", c.Dir)
	}
	if len(c.Values) == 0 {
		return Cursor{}, fmt.Errorf("cursor has no position")
	}
	return c, nil
}

// Hash computes a short hash used to bind a cursor to a filter or ordering.
// Returns empty string for empty input.
func Hash(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:8])
}

// ValidateFilterHash checks the cursor was issued for the current filter.
func ValidateFilterHash(c Cursor, currentFilter string) error {
	if c.FilterHash != Hash(currentFilter) {
		return fmt.Errorf("filter changed since cursor was created")
	}
	return nil
}

// ValidateOrderHash checks the cursor was issued for the current ordering.
func ValidateOrderHash(c Cursor, currentOrderBy string) error {
	if c.OrderHash != Hash(currentOrderBy) {
		return fmt.Errorf("ordering changed since cursor was created")
	}
	return nil
}

// NewNextPageCursor creates a cursor for the page after the boundary row.
// Ascending order reads forward, descending order reads backward.
func NewNextPageCursor(values []CursorValue, descending bool, filter, orderBy string) Cursor {
	dir := DirectionForward
	if descending {
		dir = DirectionBackward
	}
	return Cursor{
		Values:     values,
		Dir:        dir,
		FilterHash: Hash(filter),
		OrderHash:  Hash(orderBy),
	}
}

// NewPrevPageCursor creates a cursor for the page before the boundary row.
func NewPrevPageCursor(values []CursorValue, descending bool, filter, orderBy string) Cursor {
	dir := DirectionBackward
	if descending {
		dir = DirectionForward
	}
	return Cursor{
		Values:     values,
		Dir:        dir,
		Reverse:    true,
		FilterHash: Hash(filter),
		OrderHash:  Hash(orderBy),
	}
}

// ValueInt returns the named integer component.
func ValueInt(c Cursor, name string) (int64, error) {
	for _, value := range c.Values {
		if value.Name != name {
			continue
		}
		if value.Kind != KindInt {
			return 0, fmt.Errorf("cursor value %s is %s, not int", name, value.Kind)
		}
		return value.Int, nil
	}
	return 0, fmt.Errorf("cursor value %s is missing", name)
}

// ValueString returns the named string component.
func ValueString(c Cursor, name string) (string, error) {
	for _, value := range c.Values {
		if value.Name != name {
			continue
		}
		if value.Kind != KindString {
			return "", fmt.Errorf("cursor value %s is %s, not string", name, value.Kind)
		}
		return value.String, nil
	}
	return "", fmt.Errorf("cursor value %s is missing", name)
}
