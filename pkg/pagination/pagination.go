// Package pagination implements keyset paging over (created_at, id), newest first.
// Cursors are opaque to clients: base64url JSON of the last row's key.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the key of the last row on a page. The next page starts strictly after it.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], with DefaultLimit for unset values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the row count to fetch: one past the page so NextPage can tell
// whether another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// NextPage trims rows fetched with LimitWithBuffer down to the page and returns the cursor
// of its last row, or nil when this is the final page.
func NextPage[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, nil
	}
	page := rows[:limit]
	next := key(page[limit-1])
	return page, &next
}

func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a cursor. A blank value means the first page and yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.CreatedAt.IsZero() || c.ID == uuid.Nil {
		return nil, errors.New("cursor is missing its position")
	}
	return &c, nil
}
