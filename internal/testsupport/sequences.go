package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Global counter for generating unique names in tests. Seeded from the clock
// so names do not collide across test runs against a shared database.
var testSequence = uint64(time.Now().UnixNano() % 1000000)

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("docs") -> "docs_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueSessionID generates a unique chat session ID
func UniqueSessionID() string {
	return fmt.Sprintf("session_%d", NextSequence())
}
