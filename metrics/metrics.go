// Package metrics holds the counters the engine reports. A Registry is created by the caller
// and handed to the components that report into it, a nil Registry discards everything.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Counter names reported by the engine components
const (
	ChunksAllocated    = "chunks.allocated"
	ChunksReused       = "chunks.reused"
	ChunksRecycled     = "chunks.recycled"
	MapsGrown          = "maps.grown"
	CorruptionDetected = "corruption.detected"
)

// Counter - Monotonic counter
type Counter struct {
	value atomic.Int64
}

// Inc - Adds one
func (C *Counter) Inc() {
	C.Add(1)
}

// Add - Adds n
func (C *Counter) Add(n int64) {
	if C == nil {
		return
	}
	C.value.Add(n)
}

// Value - Returns the current value
func (C *Counter) Value() int64 {
	if C == nil {
		return 0
	}
	return C.value.Load()
}

// Registry - Named counters
type Registry struct {
	mutex    sync.Mutex
	counters map[string]*Counter
}

// NewRegistry - Returns an empty registry
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]*Counter)}
}

// Counter - Returns the counter registered under name, creating it on first use.
// A nil registry returns a nil counter which ignores updates.
func (R *Registry) Counter(name string) *Counter {
	if R == nil {
		return nil
	}

	R.mutex.Lock()
	defer R.mutex.Unlock()

	c, ok := R.counters[name]
	if !ok {
		c = &Counter{}
		R.counters[name] = c
	}

	return c
}

// Snapshot - Returns the current value of every counter
func (R *Registry) Snapshot() map[string]int64 {
	snapshot := make(map[string]int64)
	if R == nil {
		return snapshot
	}

	R.mutex.Lock()
	defer R.mutex.Unlock()

	for name, c := range R.counters {
		snapshot[name] = c.Value()
	}

	return snapshot
}

// WriteText - Writes one "name value" line per counter, sorted by name
func (R *Registry) WriteText(w io.Writer) error {
	snapshot := R.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s %d\n", name, snapshot[name]); err != nil {
			return err
		}
	}

	return nil
}
