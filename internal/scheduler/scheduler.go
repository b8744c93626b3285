// Package scheduler polls the persisted post queue and triggers execution
// exactly once per due post.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
)

// DefaultTick is the interval between queue polls.
const DefaultTick = time.Minute

// Executor receives a due post's payload. Its return is a synchronous
// acknowledgment, not full completion; success or failure of the actual
// posting is opaque to the scheduler.
type Executor func(ctx context.Context, post *models.ScheduledPost) error

type Scheduler struct {
	posts    store.PostStore
	executor Executor
	tick     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

func New(posts store.PostStore, executor Executor, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		posts:    posts,
		executor: executor,
		tick:     tick,
		now:      time.Now,
	}
}

// Start launches the polling loop. Calling Start while already running is a
// no-op; a second timer is never spawned.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.stopCh)
}

// Stop cancels the pending timer. A tick already in progress is allowed to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tickOnce(context.Background())
		}
	}
}

// tickOnce runs a single poll. Any failure is swallowed and logged so the
// loop keeps firing on subsequent ticks.
func (s *Scheduler) tickOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panicked", "panic", fmt.Sprint(r))
		}
	}()

	// Selecting, executing, and marking happen inside Update so the posted
	// flag lands on the freshest document; a bare Load→Save here could race a
	// queue worker's status write and re-arm an already executed post.
	err := s.posts.Update(ctx, func(posts []*models.ScheduledPost) (bool, error) {
		now := s.now()
		marked := false

		for _, post := range posts {
			if !post.Due(now) {
				continue
			}

			if err := s.executor(ctx, post); err != nil {
				slog.Error("post execution failed", "post", post.ID, "error", err)
			}

			postedAt := now
			post.Posted = true
			post.PostedAt = &postedAt
			marked = true
		}
		return marked, nil
	})
	if err != nil {
		// The queue may not be readable yet; skip this tick.
		slog.Error("failed to update post queue", "error", err)
	}
}
