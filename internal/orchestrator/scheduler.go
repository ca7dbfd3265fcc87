package orchestrator

import (
	"context"
	"log"
	"sync"
)

// Scheduler owns the deferred tasks (staggered deliveries, reaction
// follow-ups) running on behalf of each room. Tasks for a room share a
// context that is cancelled when the room is torn down; a new dispatch
// never cancels tasks already pending, so replies from a previous
// exchange still land interleaved with the new one.
type Scheduler struct {
	mu     sync.Mutex
	rooms  map[int64]*roomTasks
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type roomTasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	active int
}

// NewScheduler creates a scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rooms:  make(map[int64]*roomTasks),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs task in its own goroutine under the room's context
func (s *Scheduler) Go(roomID int64, task func(ctx context.Context)) {
	s.mu.Lock()
	rt, exists := s.rooms[roomID]
	if !exists {
		ctx, cancel := context.WithCancel(s.ctx)
		rt = &roomTasks{ctx: ctx, cancel: cancel}
		s.rooms[roomID] = rt
	}
	rt.active++
	ctx := rt.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.taskDone(roomID)
		task(ctx)
	}()
}

func (s *Scheduler) taskDone(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, exists := s.rooms[roomID]
	if !exists {
		return
	}
	rt.active--
	if rt.active <= 0 {
		rt.cancel()
		delete(s.rooms, roomID)
	}
}

// Wait blocks until every scheduled task has finished, without
// cancelling anything
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// CancelRoom cancels all pending tasks for a room. Called on room
// deletion so no delivery appends into a deleted room.
func (s *Scheduler) CancelRoom(roomID int64) {
	s.mu.Lock()
	rt, exists := s.rooms[roomID]
	if exists {
		delete(s.rooms, roomID)
	}
	s.mu.Unlock()

	if exists {
		rt.cancel()
		log.Printf("[Scheduler] Room tasks cancelled room_id=%d", roomID)
	}
}

// ActiveRooms returns the number of rooms with pending tasks
func (s *Scheduler) ActiveRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Shutdown cancels every pending task and waits for all task goroutines
// to finish
func (s *Scheduler) Shutdown() {
	log.Printf("[Scheduler] Shutting down...")
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.rooms = make(map[int64]*roomTasks)
	s.mu.Unlock()

	log.Printf("[Scheduler] Shutdown complete")
}
