// Package schedule drives tree executions on a timer: a robfig/cron
// entry-map-under-mutex, running purely in-memory schedules over a
// *sakura.Sakura facade.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakura-lang/sakura/internal/logging"
	"github.com/sakura-lang/sakura/pkg/sakura"
	"github.com/sakura-lang/sakura/pkg/value"
)

// Scheduler triggers tree executions on cron or fixed-interval schedules.
type Scheduler struct {
	sakura *sakura.Sakura
	logger *logging.Logger
	cron   *cron.Cron

	mu      sync.RWMutex
	entries map[string]cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithLocation sets the timezone the cron spec is evaluated in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(loc)) }
}

// New builds a Scheduler over sk. Schedules are registered with Add*/Remove
// and take effect once Start is called.
func New(sk *sakura.Sakura, opts ...Option) *Scheduler {
	s := &Scheduler{
		sakura:  sk,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins firing registered schedules. Jobs already added via
// AddCron/AddInterval before Start run from this point forward.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AddCron registers treeID to run on a cron expression under id, with the
// given inputs supplied on every firing. The expression may be a standard
// five-field one, a six-field one with a leading seconds field, or a
// descriptor such as "@hourly". A second call with the same id replaces
// the previous schedule.
func (s *Scheduler) AddCron(id, treeID, expr string, inputs map[string]value.Value) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("schedule %s: invalid cron expression %q: %w", id, expr, err)
	}
	return s.addLocked(id, s.job(id, treeID, inputs), schedule)
}

// AddInterval registers treeID to run every interval under id.
func (s *Scheduler) AddInterval(id, treeID string, interval time.Duration, inputs map[string]value.Value) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", id)
	}
	schedule := cron.ConstantDelaySchedule{Delay: interval}
	return s.addLocked(id, s.job(id, treeID, inputs), schedule)
}

func (s *Scheduler) addLocked(id string, job cron.Job, schedule cron.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[id]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	s.entries[id] = s.cron.Schedule(schedule, job)
	return nil
}

// Remove cancels a previously registered schedule. It is a no-op if id is
// not currently scheduled.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[id]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// Next reports the next firing time for id, if it is currently scheduled.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryID, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

func (s *Scheduler) job(id, treeID string, inputs map[string]value.Value) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := s.sakura.RunTree(ctx, treeID, inputs); err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled tree run failed", "schedule_id", id, "tree_id", treeID, "error", err)
			}
		}
	})
}
