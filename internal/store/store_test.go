package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/runesmith/dashboard/internal/models"
	"github.com/runesmith/dashboard/internal/store"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// at returns base shifted by n minutes.
func at(n int) time.Time {
	return base.Add(time.Duration(n) * time.Minute)
}

func ids(artifacts []models.Artifact) []int64 {
	out := make([]int64, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Sort policy ---

func TestReplacePending_NewestCreatedFirst(t *testing.T) {
	s := store.New()
	s.ReplacePending(s.Begin(), []models.Artifact{
		{ID: 1, CreatedAt: at(1)},
		{ID: 3, CreatedAt: at(3)},
		{ID: 2, CreatedAt: at(2)},
	})

	got := ids(s.Snapshot().Pending)
	if want := []int64{3, 2, 1}; !equalIDs(got, want) {
		t.Errorf("pending order: got %v, want %v", got, want)
	}
}

func TestReplaceCompleted_OrdersByUpdatedNotCreated(t *testing.T) {
	s := store.New()
	// A created at T1 updated at T5; B created at T2 updated at T3.
	s.ReplaceCompleted(s.Begin(), []models.Artifact{
		{ID: 2, CreatedAt: at(2), UpdatedAt: at(3)},
		{ID: 1, CreatedAt: at(1), UpdatedAt: at(5)},
	})

	got := ids(s.Snapshot().Completed)
	if want := []int64{1, 2}; !equalIDs(got, want) {
		t.Errorf("completed order: got %v, want %v", got, want)
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := []models.Artifact{
		{ID: 1, CreatedAt: at(1), UpdatedAt: at(9)},
		{ID: 2, CreatedAt: at(2), UpdatedAt: at(8)},
	}
	_ = store.SortByCreatedDesc(in)
	_ = store.SortByUpdatedDesc(in)
	if got := ids(in); !equalIDs(got, []int64{1, 2}) {
		t.Errorf("input was reordered: %v", got)
	}
}

func TestSort_ZeroTimestampsSortLast(t *testing.T) {
	got := ids(store.SortByCreatedDesc([]models.Artifact{
		{ID: 1},
		{ID: 2, CreatedAt: at(1)},
	}))
	if want := []int64{2, 1}; !equalIDs(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

// --- Derived signals ---

func TestHasRunning_RecomputedOnNodeReplace(t *testing.T) {
	s := store.New()
	if s.HasRunning() {
		t.Fatal("empty store should not report running")
	}

	s.ReplaceNodes(s.Begin(), []models.NodeStatus{{Name: "a"}, {Name: "b", RunningJobs: 2}})
	if !s.HasRunning() {
		t.Error("HasRunning: got false after node with running jobs")
	}

	s.ReplaceNodes(s.Begin(), []models.NodeStatus{{Name: "a"}, {Name: "b"}})
	if s.HasRunning() {
		t.Error("HasRunning: got true after all nodes idle")
	}
}

func TestHasPending(t *testing.T) {
	s := store.New()
	s.ReplacePending(s.Begin(), []models.Artifact{{ID: 1}})
	if !s.HasPending() || !s.Active() {
		t.Error("expected pending activity")
	}
	s.ReplacePending(s.Begin(), nil)
	if s.HasPending() || s.Active() {
		t.Error("expected no activity after empty replace")
	}
}

// --- Snapshot replacement ---

func TestReplace_IsFullSnapshotNotMerge(t *testing.T) {
	s := store.New()
	s.ReplacePending(s.Begin(), []models.Artifact{{ID: 1}, {ID: 2}})
	s.ReplacePending(s.Begin(), []models.Artifact{{ID: 3}})

	if got := ids(s.Snapshot().Pending); !equalIDs(got, []int64{3}) {
		t.Errorf("pending after replace: got %v, want [3]", got)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := store.New()
	s.ReplaceNodes(s.Begin(), []models.NodeStatus{{Name: "a"}})

	snap := s.Snapshot()
	snap.Nodes[0].Name = "mutated"

	if got := s.Snapshot().Nodes[0].Name; got != "a" {
		t.Errorf("store was mutated through snapshot: got %q", got)
	}
}

// --- Freshness guard ---

func TestReplace_DiscardsStaleSequence(t *testing.T) {
	s := store.New()
	older := s.Begin()
	newer := s.Begin()

	if !s.ReplaceNodes(newer, []models.NodeStatus{{Name: "fresh"}}) {
		t.Fatal("newer write should apply")
	}
	if s.ReplaceNodes(older, []models.NodeStatus{{Name: "stale"}}) {
		t.Error("older write should be discarded")
	}
	if got := s.Snapshot().Nodes[0].Name; got != "fresh" {
		t.Errorf("node name: got %q, want fresh", got)
	}
}

func TestReplace_SequenceIsPerCollection(t *testing.T) {
	s := store.New()
	nodesSeq := s.Begin()
	pendingSeq := s.Begin()

	s.ReplacePending(pendingSeq, []models.Artifact{{ID: 1}})
	if !s.ReplaceNodes(nodesSeq, []models.NodeStatus{{Name: "n"}}) {
		t.Error("nodes write should not be blocked by a newer pending write")
	}
}

func TestReplaceArtifacts_AllOrNothing(t *testing.T) {
	s := store.New()
	older := s.Begin()
	newer := s.Begin()

	s.ReplaceCompleted(newer, []models.Artifact{{ID: 9}})
	if s.ReplaceArtifacts(older, []models.Artifact{{ID: 1}}, []models.Artifact{{ID: 2}}) {
		t.Fatal("stale artifact pair should be discarded")
	}
	snap := s.Snapshot()
	if len(snap.Pending) != 0 {
		t.Errorf("pending should stay empty, got %v", ids(snap.Pending))
	}
	if got := ids(snap.Completed); !equalIDs(got, []int64{9}) {
		t.Errorf("completed: got %v, want [9]", got)
	}
}

// --- Change notification ---

func TestOnChange_CalledWithSnapshot(t *testing.T) {
	s := store.New()
	var (
		mu    sync.Mutex
		snaps []store.Snapshot
	)
	s.OnChange(func(snap store.Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	stale := s.Begin()
	s.ReplaceNodes(s.Begin(), []models.NodeStatus{{Name: "a", RunningJobs: 1}})
	s.ReplaceNodes(stale, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) != 1 {
		t.Fatalf("OnChange calls: got %d, want 1", len(snaps))
	}
	if !snaps[0].HasRunning || !snaps[0].Active() {
		t.Error("snapshot should report running activity")
	}
}

func TestCounts(t *testing.T) {
	s := store.New()
	s.ReplaceNodes(s.Begin(), []models.NodeStatus{{}, {}})
	s.ReplaceItems(s.Begin(), []models.Item{{ID: 1}})

	c := s.Counts()
	if c["nodes"] != 2 || c["items"] != 1 || c["pending"] != 0 || c["completed"] != 0 {
		t.Errorf("Counts: got %v", c)
	}
}
