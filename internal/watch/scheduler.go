package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SubscriberStatus is the scheduler's view of one subscriber, exposed by
// the status API.
type SubscriberStatus struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Interval   string    `json:"interval"`
	LastRun    time.Time `json:"last_run,omitzero"`
	LastStatus string    `json:"last_status,omitempty"`
}

// Scheduler polls each subscriber on its own interval. Entries are
// wrapped in an overlap guard, so a cycle still running when the next
// tick fires makes that tick a no-op rather than queueing behind it.
type Scheduler struct {
	runner  *Runner
	cron    *cron.Cron
	baseCtx context.Context
	logger  *zap.Logger

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	cancels  map[string]context.CancelFunc
	statuses map[string]*SubscriberStatus
}

// NewScheduler builds a stopped scheduler; call Start after adding
// subscribers.
func NewScheduler(ctx context.Context, runner *Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		cron:     cron.New(cron.WithChain()),
		baseCtx:  ctx,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
		cancels:  make(map[string]context.CancelFunc),
		statuses: make(map[string]*SubscriberStatus),
	}
}

// Add registers a subscriber. Re-adding a name replaces its entry.
func (s *Scheduler) Add(sub Subscriber) error {
	if sub.Name == "" {
		return fmt.Errorf("subscriber name is required")
	}
	interval := sub.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[sub.Name]; ok {
		s.cron.Remove(id)
		if cancel := s.cancels[sub.Name]; cancel != nil {
			cancel()
		}
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.cancels[sub.Name] = cancel
	s.statuses[sub.Name] = &SubscriberStatus{
		Name:     sub.Name,
		Category: sub.Category,
		Interval: interval.String(),
	}

	guard := cron.NewChain(cron.SkipIfStillRunning(s.cronLogger(sub.Name)))
	job := guard.Then(cron.FuncJob(func() {
		res := s.runner.RunCycle(runCtx, sub)
		s.mu.Lock()
		if status, ok := s.statuses[sub.Name]; ok {
			status.LastRun = res.FinishedAt
			status.LastStatus = res.Status
		}
		s.mu.Unlock()
	}))
	s.entries[sub.Name] = s.cron.Schedule(cron.Every(interval), job)
	s.logger.Info("subscriber scheduled",
		zap.String("subscriber", sub.Name),
		zap.Duration("interval", interval))
	return nil
}

// Remove unschedules a subscriber and aborts its in-flight cycle.
// Aborted cycles are not checkpointed.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
	delete(s.statuses, name)
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts ticking, aborts in-flight cycles, and waits for the cron
// runner to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// Statuses snapshots all scheduled subscribers for the status API.
func (s *Scheduler) Statuses() []SubscriberStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SubscriberStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, *status)
	}
	return out
}

func (s *Scheduler) cronLogger(subscriber string) cron.Logger {
	return zapCronLogger{logger: s.logger.With(zap.String("subscriber", subscriber))}
}

// zapCronLogger adapts zap to the cron.Logger the overlap guard reports
// skipped ticks through.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append([]any{"error", err}, keysAndValues...)...)
}
