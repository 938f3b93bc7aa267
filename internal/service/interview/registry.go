package interview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// Registry maps room ids to live rooms. The map lock is held only for
// lookups and membership changes; per-room work is serialized by each
// entry's phase lock so rooms never contend with each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*entry)}
}

// Len reports how many rooms are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) add(e *entry) {
	r.mu.Lock()
	r.rooms[e.room.ID] = e
	r.mu.Unlock()
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return e, nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.rooms, id)
	r.mu.Unlock()
}

// entry is one registered room.
//
// phase is a one-slot semaphore held for the whole of any operation that
// reads or mutates the room, including until a returned stream ends.
// mu guards room for snapshot readers that do not take the phase lock;
// writers hold both.
type entry struct {
	phase   chan struct{}
	mu      sync.RWMutex
	room    domain.Room
	stopped atomic.Bool

	timerMu sync.Mutex
	timer   *time.Timer
}

func newEntry(room domain.Room) *entry {
	return &entry{phase: make(chan struct{}, 1), room: room}
}

// arm schedules fn once the room lifetime d elapses.
func (e *entry) arm(d time.Duration, fn func()) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopped.Load() {
		return
	}
	e.timer = time.AfterFunc(d, fn)
}

func (e *entry) disarm() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.phase <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() {
	<-e.phase
}

func (e *entry) update(fn func(room *domain.Room)) {
	e.mu.Lock()
	fn(&e.room)
	e.mu.Unlock()
}

func (e *entry) snapshot() domain.Room {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.room.Snapshot()
}
