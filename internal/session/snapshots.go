package session

import (
	"errors"
	"image"
	"sync"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/window"
)

// ErrSealed is returned when a snapshot is added after the pre-capture
// pass completed.
var ErrSealed = errors.New("snapshot store is sealed")

// Snapshot is one window captured during the pre-capture pass.
type Snapshot struct {
	Info    window.WindowInfo
	Capture *capture.WindowCapture
}

// ContentRect is the on-screen rectangle the snapshot's pixels cover.
func (s Snapshot) ContentRect() image.Rectangle {
	return s.Capture.ContentRect(s.Info)
}

// SnapshotStore collects snapshots from the pre-capture goroutine. Seal
// hands the collected snapshots over as an immutable SnapshotSet; readers
// that only touch the set need no locking.
type SnapshotStore struct {
	mu     sync.Mutex
	items  map[uint32]Snapshot
	sealed *SnapshotSet

	once sync.Once
	done chan struct{}
}

// NewSnapshotStore creates an empty, unsealed store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		items: make(map[uint32]Snapshot),
		done:  make(chan struct{}),
	}
}

// Put records a snapshot. A later snapshot of the same window replaces
// the earlier one.
func (s *SnapshotStore) Put(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed != nil {
		return ErrSealed
	}
	s.items[snap.Info.ID] = snap
	return nil
}

// Seal freezes the store and closes Done. It is idempotent; every call
// returns the same set.
func (s *SnapshotStore) Seal() *SnapshotSet {
	s.once.Do(func() {
		s.mu.Lock()
		set := &SnapshotSet{items: s.items}
		s.items = nil
		s.sealed = set
		s.mu.Unlock()
		close(s.done)
	})
	return s.Set()
}

// Done is closed once the store is sealed.
func (s *SnapshotStore) Done() <-chan struct{} {
	return s.done
}

// Set returns the sealed set, or nil before Seal.
func (s *SnapshotStore) Set() *SnapshotSet {
	select {
	case <-s.done:
	default:
		return nil
	}
	// The close of done orders the write of sealed before this read.
	return s.sealed
}

// Len returns the number of snapshots collected so far.
func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed != nil {
		return s.sealed.Len()
	}
	return len(s.items)
}

// Clear drops every snapshot at teardown. A store cleared before sealing
// stays writable; a sealed set is emptied in place, so no reader may still
// be using it.
func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed == nil {
		s.items = make(map[uint32]Snapshot)
		return
	}
	s.sealed.items = map[uint32]Snapshot{}
}

// SnapshotSet is the read-only result of a sealed store.
type SnapshotSet struct {
	items map[uint32]Snapshot
}

// Get returns the snapshot for a window.
func (s *SnapshotSet) Get(id uint32) (Snapshot, bool) {
	if s == nil {
		return Snapshot{}, false
	}
	snap, ok := s.items[id]
	return snap, ok
}

// Len returns the number of snapshots.
func (s *SnapshotSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}
