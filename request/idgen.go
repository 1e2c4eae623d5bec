package request

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces strings unique within the process lifetime. Each
// generator carries a random prefix so ids from restarted processes do not
// collide, and a monotonic counter so ids within a process sort by issue
// order.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewIDGenerator seeds a generator with a fresh random prefix.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{prefix: uuid.NewString()[:8]}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}
