package domain

import "time"

// Cursor is the server-issued pull watermark for one tenant and entity.
// The zero value means "never pulled".
type Cursor string

// IsZero reports whether no watermark has been recorded yet
func (c Cursor) IsZero() bool {
	return c == ""
}

// String returns the raw watermark
func (c Cursor) String() string {
	return string(c)
}

// Advance returns the cursor to store after the server answered with next.
// An empty next keeps the current value, and a cursor never moves backward
// when both values are timestamps. Opaque values are taken from the server
// as-is.
func (c Cursor) Advance(next Cursor) Cursor {
	if next.IsZero() {
		return c
	}
	if c.IsZero() {
		return next
	}
	cur, errCur := time.Parse(time.RFC3339Nano, string(c))
	nxt, errNext := time.Parse(time.RFC3339Nano, string(next))
	if errCur != nil || errNext != nil {
		return next
	}
	if nxt.Before(cur) {
		return c
	}
	return next
}
