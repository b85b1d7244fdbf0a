// Package pagination implements cursor paging over (created_at, id) ordered
// listings. Tokens are opaque base64 cursors.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size into [1, maxPageSize].
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	if p.PageSize > maxPageSize {
		return maxPageSize
	}
	return p.PageSize
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// BuildPageInfo trims an over-fetched result set (limit+1 rows) to the page
// size and derives the next-page token from the last kept row.
func BuildPageInfo[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, *PageInfo) {
	if len(rows) <= limit {
		return rows, &PageInfo{}
	}

	rows = rows[:limit]
	token, err := EncodeCursor(cursorOf(rows[len(rows)-1]))
	if err != nil {
		return rows, &PageInfo{HasMore: true}
	}
	return rows, &PageInfo{NextPageToken: token, HasMore: true}
}
