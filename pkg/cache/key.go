package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PageKey identifies one cached search page. Two fetches with the same search
// query, cursor, and page size are interchangeable, so they share a key.
type PageKey struct {
	// Query is the search query string (e.g. "stars:>1 sort:stars-desc is:public").
	Query string

	// Cursor is the pagination cursor the page starts after; empty for the
	// first page.
	Cursor string

	// PageSize is the requested number of records.
	PageSize int
}

// String generates a deterministic cache key string. The query is hashed
// because it contains spaces and colons; cursors are opaque base64 and safe
// to embed directly.
//
// Format: stars:search:q=<hash>:after=<cursor>:first=<n>
func (k PageKey) String() string {
	sum := sha256.Sum256([]byte(k.Query))
	cursor := k.Cursor
	if cursor == "" {
		cursor = "start"
	}
	return fmt.Sprintf("stars:search:q=%s:after=%s:first=%d",
		hex.EncodeToString(sum[:8]), cursor, k.PageSize)
}
