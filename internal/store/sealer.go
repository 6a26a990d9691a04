package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by write operations addressed at a missing row.
// Reads return nil, nil instead.
var ErrNotFound = errors.New("not found")

// Sealer encrypts secret column values. The zero behaviour (PlainSealer)
// stores them as given.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(stored string) (string, error)
}

// PlainSealer stores secrets unencrypted.
type PlainSealer struct{}

func (PlainSealer) Seal(plain string) (string, error)  { return plain, nil }
func (PlainSealer) Open(stored string) (string, error) { return stored, nil }

// Timestamps are stored as Unix nanoseconds so ordering by them is exact.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
