package progress

import "sync"

// Sample is a single byte-count reading for one unit of work.
// Known is false until the transport has reported a total for the unit.
type Sample struct {
	Transferred int64 `json:"transferred"`
	Total       int64 `json:"total"`
	Known       bool  `json:"known"`
}

// Tree is a progress node: its own summary plus the readings it was built from.
type Tree struct {
	Name string `json:"name,omitempty"`
	Sample
	Percent  float64 `json:"percent"`
	Children []Tree  `json:"children,omitempty"`
}

// Leaf returns a node with a known total.
func Leaf(name string, transferred, total int64) Tree {
	return Tree{
		Name:    name,
		Sample:  Sample{Transferred: transferred, Total: total, Known: true},
		Percent: ratio(transferred, total),
	}
}

// Pending returns a node whose total is not known yet.
func Pending(name string) Tree {
	return Tree{Name: name}
}

// Aggregate combines children into a single node. Children with an unknown
// total are kept in the tree but do not contribute to the sums. A previous
// aggregate is a valid child, so the same function serves every level.
func Aggregate(name string, children ...Tree) Tree {
	var transferred, total int64
	for _, child := range children {
		if !child.Known {
			continue
		}
		transferred += child.Transferred
		total += child.Total
	}

	return Tree{
		Name:     name,
		Sample:   Sample{Transferred: transferred, Total: total, Known: true},
		Percent:  ratio(transferred, total),
		Children: children,
	}
}

// ratio is transferred/total clamped to [0,1]; zero when total is not positive.
func ratio(transferred, total int64) float64 {
	if total <= 0 || transferred <= 0 {
		return 0
	}
	if transferred >= total {
		return 1
	}
	return float64(transferred) / float64(total)
}

// Arena holds one slot per ordinal (chunk within a file, file within a batch).
// Writes are serialized; Snapshot aggregates a copy of the slots.
type Arena struct {
	mu    sync.Mutex
	name  string
	slots []Tree
}

// NewArena creates an arena with size pending slots.
func NewArena(name string, size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{
		name:  name,
		slots: make([]Tree, size),
	}
}

// Name returns the name used for the aggregate node.
func (a *Arena) Name() string {
	return a.name
}

// Len returns the number of slots.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

// Set replaces slot i. Out of range ordinals are ignored.
func (a *Arena) Set(i int, node Tree) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.slots) {
		return
	}
	a.slots[i] = node
}

// Update records a known reading for slot i.
func (a *Arena) Update(i int, name string, transferred, total int64) {
	a.Set(i, Leaf(name, transferred, total))
}

// Snapshot returns the aggregate over the current slots.
func (a *Arena) Snapshot() Tree {
	a.mu.Lock()
	children := make([]Tree, len(a.slots))
	copy(children, a.slots)
	a.mu.Unlock()

	return Aggregate(a.name, children...)
}
