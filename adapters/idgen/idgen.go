// Package idgen generates the identifiers given to stored instances.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out unique identifiers.
type Generator interface {
	New() string
}

// UUID generates random version 4 UUIDs.
type UUID struct{}

// New returns a fresh UUID.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates prefix1, prefix2, ... and is safe for concurrent
// use. Tests use it to predict instance IDs.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a generator whose IDs start with prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Reset restarts the sequence at 1.
func (s *Sequential) Reset() {
	s.counter.Store(0)
}

var (
	_ Generator = UUID{}
	_ Generator = (*Sequential)(nil)
)
