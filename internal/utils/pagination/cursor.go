package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oggyb/devmatch/internal/domain"
)

// ErrInvalidToken is returned for tokens this package did not produce.
var ErrInvalidToken = fmt.Errorf("%w: invalid pagination token", domain.ErrValidation)

// Cursor is the opaque pagination state we encode/decode.
// ID + At (unix nanos of the ordering timestamp) establish a stable cursor
// for lists ordered by (timestamp DESC, id DESC).
type Cursor struct {
	ID string `json:"id"`
	At int64  `json:"at,omitempty"`
}

// After builds the cursor pointing past the given row.
func After(id string, at time.Time) Cursor {
	return Cursor{ID: id, At: at.UnixNano()}
}

// IsZero reports whether the cursor addresses the first page.
func (c Cursor) IsZero() bool {
	return c.ID == "" || c.At == 0
}

// Time returns the cursor timestamp in UTC.
func (c Cursor) Time() time.Time {
	return time.Unix(0, c.At).UTC()
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Page trims a limit+1 result set and returns the token for the next page.
// key extracts the cursor fields from a row.
func Page[T any](rows []T, limit int, key func(T) Cursor) ([]T, *string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, nil
	}
	token, err := Encode(key(rows[limit-1]))
	if err != nil {
		return rows[:limit], nil
	}
	return rows[:limit], &token
}

// Deref safely dereferences a string pointer for pagination tokens.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
