// Package store holds the latest normalized snapshot of everything the
// dashboard shows and derives the activity signal that gates polling.
package store

import (
	"slices"
	"sync"

	"github.com/runesmith/dashboard/internal/models"
)

// Collection names one independently replaced slice of the store.
type Collection string

const (
	Nodes     Collection = "nodes"
	Pending   Collection = "pending"
	Completed Collection = "completed"
	Items     Collection = "items"
)

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Nodes      []models.NodeStatus
	Pending    []models.Artifact
	Completed  []models.Artifact
	Items      []models.Item
	HasRunning bool
	HasPending bool
}

// Active reports whether any work is in flight.
func (s Snapshot) Active() bool {
	return s.HasRunning || s.HasPending
}

// Store is safe for concurrent use. All writes replace a whole collection;
// nothing is merged.
//
// Writers obtain a sequence number with Begin before issuing a request and
// pass it back on Replace*. A result carrying a sequence number older than
// the last applied one for that collection is discarded, so a slow response
// from a superseded poll tick cannot overwrite fresher data.
type Store struct {
	mu         sync.RWMutex
	nodes      []models.NodeStatus
	pending    []models.Artifact
	completed  []models.Artifact
	items      []models.Item
	hasRunning bool

	next    uint64
	applied map[Collection]uint64

	onChange func(Snapshot)
}

// New returns an empty store.
func New() *Store {
	return &Store{applied: make(map[Collection]uint64)}
}

// OnChange registers fn to be called after every applied replacement with
// the resulting snapshot. It is called outside the store lock.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Begin returns a fresh sequence number for tagging an outgoing request.
// Sequence numbers are shared across collections and strictly increasing.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// ReplaceNodes swaps in a new node list and recomputes HasRunning. It
// reports whether the write was applied.
func (s *Store) ReplaceNodes(seq uint64, nodes []models.NodeStatus) bool {
	return s.apply(Nodes, seq, func() {
		s.nodes = slices.Clone(nodes)
		s.hasRunning = slices.ContainsFunc(s.nodes, func(n models.NodeStatus) bool {
			return n.RunningJobs > 0
		})
	})
}

// ReplacePending swaps in the pending artifacts, newest created first.
func (s *Store) ReplacePending(seq uint64, artifacts []models.Artifact) bool {
	return s.apply(Pending, seq, func() {
		s.pending = SortByCreatedDesc(artifacts)
	})
}

// ReplaceCompleted swaps in the completed artifacts, most recently updated first.
func (s *Store) ReplaceCompleted(seq uint64, artifacts []models.Artifact) bool {
	return s.apply(Completed, seq, func() {
		s.completed = SortByUpdatedDesc(artifacts)
	})
}

// ReplaceArtifacts applies pending and completed sets fetched together.
// Either both are applied or neither is.
func (s *Store) ReplaceArtifacts(seq uint64, pending, completed []models.Artifact) bool {
	s.mu.Lock()
	if s.stale(Pending, seq) || s.stale(Completed, seq) {
		s.mu.Unlock()
		return false
	}
	s.applied[Pending] = seq
	s.applied[Completed] = seq
	s.pending = SortByCreatedDesc(pending)
	s.completed = SortByUpdatedDesc(completed)
	snap, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return true
}

// ReplaceItems swaps in the catalog.
func (s *Store) ReplaceItems(seq uint64, items []models.Item) bool {
	return s.apply(Items, seq, func() {
		s.items = slices.Clone(items)
	})
}

func (s *Store) apply(c Collection, seq uint64, write func()) bool {
	s.mu.Lock()
	if s.stale(c, seq) {
		s.mu.Unlock()
		return false
	}
	s.applied[c] = seq
	write()
	snap, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return true
}

func (s *Store) stale(c Collection, seq uint64) bool {
	return seq < s.applied[c]
}

// HasRunning reports whether any node has a running job.
func (s *Store) HasRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRunning
}

// HasPending reports whether there is at least one pending artifact.
func (s *Store) HasPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) > 0
}

// Active is HasRunning || HasPending read under a single lock.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRunning || len(s.pending) > 0
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Nodes:      slices.Clone(s.nodes),
		Pending:    slices.Clone(s.pending),
		Completed:  slices.Clone(s.completed),
		Items:      slices.Clone(s.items),
		HasRunning: s.hasRunning,
		HasPending: len(s.pending) > 0,
	}
}

// Counts returns the size of each collection.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		string(Nodes):     len(s.nodes),
		string(Pending):   len(s.pending),
		string(Completed): len(s.completed),
		string(Items):     len(s.items),
	}
}

// SortByCreatedDesc returns a copy of artifacts ordered newest CreatedAt
// first. The input is not modified.
func SortByCreatedDesc(artifacts []models.Artifact) []models.Artifact {
	out := slices.Clone(artifacts)
	slices.SortStableFunc(out, func(a, b models.Artifact) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// SortByUpdatedDesc returns a copy of artifacts ordered newest UpdatedAt
// first. The input is not modified.
func SortByUpdatedDesc(artifacts []models.Artifact) []models.Artifact {
	out := slices.Clone(artifacts)
	slices.SortStableFunc(out, func(a, b models.Artifact) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}
