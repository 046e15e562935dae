package search

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrInvalidCursor indicates that a supplied cursor token could not be
// decoded.
var ErrInvalidCursor = errors.New("search: invalid cursor")

// Cursor is the full state of a paginated walk. It is a pure value:
// everything needed to resume is embedded in the token, no server-side
// state.
type Cursor struct {
	// Prefix restricts results to keys starting with it.
	Prefix string `json:"prefix,omitempty"`
	// Keyword selects keyword mode when non-empty.
	Keyword string `json:"keyword,omitempty"`
	// Key is the exclusive boundary: the last key of the previous page.
	Key string `json:"key,omitempty"`
	// Count is the page size.
	Count int `json:"count"`
	// Offset is the cumulative position. Advisory in listing mode,
	// load-bearing in keyword mode.
	Offset int `json:"offset"`
}

// Encode serializes the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	v := url.Values{}
	if c.Prefix != "" {
		v.Set("prefix", c.Prefix)
	}
	if c.Keyword != "" {
		v.Set("keyword", c.Keyword)
	}
	if c.Key != "" {
		v.Set("key", c.Key)
	}
	v.Set("count", strconv.Itoa(c.Count))
	v.Set("offset", strconv.Itoa(c.Offset))
	return base64.RawURLEncoding.EncodeToString([]byte(v.Encode()))
}

// DecodeCursor parses a token produced by Encode. An empty token is the
// start of a walk. Malformed tokens fail with ErrInvalidCursor.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	v, err := url.ParseQuery(string(raw))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	c := Cursor{
		Prefix:  v.Get("prefix"),
		Keyword: v.Get("keyword"),
		Key:     v.Get("key"),
	}
	if s := v.Get("count"); s != "" {
		if c.Count, err = strconv.Atoi(s); err != nil {
			return Cursor{}, fmt.Errorf("%w: count %q", ErrInvalidCursor, s)
		}
	}
	if s := v.Get("offset"); s != "" {
		if c.Offset, err = strconv.Atoi(s); err != nil {
			return Cursor{}, fmt.Errorf("%w: offset %q", ErrInvalidCursor, s)
		}
	}
	if c.Count < 0 || c.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative count or offset", ErrInvalidCursor)
	}
	return c, nil
}
