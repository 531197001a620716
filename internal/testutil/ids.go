// Package testutil holds deterministic id sources for tests and scenario
// runs.
package testutil

import (
	"strconv"
	"sync/atomic"

	"github.com/corleone113/waypoint/internal/history"
)

// IDSource hands out prefix-1, prefix-2, ... in call order. It satisfies
// router.IDGenerator, and Keys adapts it to history.KeyFunc, so navigation
// ids and entry keys stay stable across runs.
//
// Unlike router.SequenceGenerator, an IDSource can be reset, so one
// fixture can drive several runs with identical output.
type IDSource struct {
	prefix string
	n      atomic.Int64
}

// NewIDSource returns a source whose first id is prefix-1.
func NewIDSource(prefix string) *IDSource {
	return &IDSource{prefix: prefix}
}

// Generate returns the next id.
func (s *IDSource) Generate() string {
	return s.prefix + "-" + strconv.FormatInt(s.n.Add(1), 10)
}

// Keys returns a history.KeyFunc drawing from this source.
func (s *IDSource) Keys() history.KeyFunc {
	return s.Generate
}

// Issued reports how many ids have been handed out.
func (s *IDSource) Issued() int64 {
	return s.n.Load()
}

// Reset starts the sequence over at prefix-1.
func (s *IDSource) Reset() {
	s.n.Store(0)
}
