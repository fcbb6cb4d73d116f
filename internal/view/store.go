package view

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Update announces that a region changed.
type Update struct {
	Region Region
	Seq    uint64
}

// Store holds the live view-model. Each region is written by exactly one
// poller operation; the store keeps the newest tick per region.
type Store struct {
	mu   sync.RWMutex
	vm   ViewModel
	subs map[uuid.UUID]chan Update
	now  func() time.Time
}

// NewStore returns a store holding NewViewModel().
func NewStore() *Store {
	return &Store{
		vm:   NewViewModel(),
		subs: make(map[uuid.UUID]chan Update),
		now:  time.Now,
	}
}

// Snapshot returns a copy of the current view-model.
func (s *Store) Snapshot() ViewModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vm
}

// Apply runs fn against the model to replace the content of region and marks
// the region fresh. Updates from a tick older than the last one applied to
// the region are dropped and Apply returns false.
func (s *Store) Apply(region Region, seq uint64, fn func(vm *ViewModel)) bool {
	s.mu.Lock()
	st := s.vm.status(region)
	if st == nil || seq < st.Seq {
		s.mu.Unlock()
		return false
	}
	prev := *st
	fn(&s.vm)

	st = s.vm.status(region)
	*st = Status{
		Seq:       seq,
		UpdatedAt: s.now(),
		FailedAt:  prev.FailedAt,
	}
	s.mu.Unlock()

	s.publish(Update{Region: region, Seq: seq})
	return true
}

// Fail records a failed refresh. The region keeps its last good content and
// is flagged stale.
func (s *Store) Fail(region Region, seq uint64, kind string, err error) bool {
	s.mu.Lock()
	st := s.vm.status(region)
	if st == nil || seq < st.Seq {
		s.mu.Unlock()
		return false
	}
	st.Seq = seq
	st.Stale = true
	st.ErrKind = kind
	st.Err = err.Error()
	st.FailedAt = s.now()
	s.mu.Unlock()

	s.publish(Update{Region: region, Seq: seq})
	return true
}

// Subscribe registers a listener for region updates. Notifications are
// dropped rather than blocking the poller when the buffer is full.
func (s *Store) Subscribe(buffer int) (uuid.UUID, <-chan Update) {
	id := uuid.New()
	ch := make(chan Update, buffer)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live listeners.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) publish(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
