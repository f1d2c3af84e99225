package reconciler

import (
	"maps"
	"slices"
	"strings"
)

// ChangedSet holds the configuration paths reported changed since they were last
// consumed by a rescan. It is owned by a single goroutine.
type ChangedSet struct {
	paths map[string]struct{}
}

func NewChangedSet(paths ...string) *ChangedSet {
	c := &ChangedSet{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		c.Add(p)
	}
	return c
}

func (c *ChangedSet) Add(path string) {
	c.paths[path] = struct{}{}
}

func (c *ChangedSet) Len() int {
	return len(c.paths)
}

// Paths returns the set in lexical order.
func (c *ChangedSet) Paths() []string {
	return slices.Sorted(maps.Keys(c.paths))
}

// TakeSuffix removes and returns the first path, in lexical order, ending with suffix.
func (c *ChangedSet) TakeSuffix(suffix string) (string, bool) {
	for _, p := range c.Paths() {
		if strings.HasSuffix(p, suffix) {
			delete(c.paths, p)
			return p, true
		}
	}
	return "", false
}

// ScanMode is either a full scan, where every match is (re)constructed, or an incremental
// scan driven by a set of changed configuration paths.
type ScanMode struct {
	changed *ChangedSet
}

func FullScan() ScanMode {
	return ScanMode{}
}

func IncrementalScan(changed *ChangedSet) ScanMode {
	if changed == nil {
		changed = NewChangedSet()
	}
	return ScanMode{changed: changed}
}

func (m ScanMode) IsFull() bool {
	return m.changed == nil
}

// Changed is nil for a full scan.
func (m ScanMode) Changed() *ChangedSet {
	return m.changed
}

func (m ScanMode) String() string {
	if m.IsFull() {
		return "full"
	}
	return "incremental"
}
