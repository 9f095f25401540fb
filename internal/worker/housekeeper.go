package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
)

// Job names
const (
	JobExpireSubscriptions = "expire_subscriptions"
	JobCacheSweep          = "cache_sweep"
)

// Expirer moves lapsed subscriptions out of the active state
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int64, error)
}

// Sweeper drops expired cache entries
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type job struct {
	schedule string
	run      func(ctx context.Context) (int64, error)
}

// Housekeeper runs periodic maintenance on a cron schedule.
// Quota resets are not scheduled here; they happen lazily on access.
type Housekeeper struct {
	jobs      map[string]job
	timeout   time.Duration
	logger    *logger.Logger
	mu        sync.Mutex
	scheduler *cron.Cron
	entries   map[string]cron.EntryID
}

// NewHousekeeper validates the schedules and prepares the jobs
func NewHousekeeper(expirer Expirer, sweeper Sweeper, expireSchedule, sweepSchedule string, log *logger.Logger) (*Housekeeper, error) {
	h := &Housekeeper{
		jobs:    make(map[string]job),
		timeout: 5 * time.Minute,
		logger:  log,
		entries: make(map[string]cron.EntryID),
	}

	if expirer != nil {
		if err := h.add(JobExpireSubscriptions, expireSchedule, expirer.ExpireLapsed); err != nil {
			return nil, err
		}
	}
	if sweeper != nil {
		err := h.add(JobCacheSweep, sweepSchedule, func(ctx context.Context) (int64, error) {
			n, err := sweeper.Sweep(ctx)
			return int64(n), err
		})
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

func (h *Housekeeper) add(name, schedule string, run func(ctx context.Context) (int64, error)) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	h.jobs[name] = job{schedule: schedule, run: run}
	return nil
}

// Jobs returns the registered job names
func (h *Housekeeper) Jobs() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start schedules every job. It returns an error if already running.
func (h *Housekeeper) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.scheduler != nil {
		return fmt.Errorf("housekeeper is already running")
	}

	h.scheduler = cron.New()
	for _, name := range h.Jobs() {
		name := name
		j := h.jobs[name]
		id, err := h.scheduler.AddFunc(j.schedule, func() {
			h.RunNow(context.Background(), name)
		})
		if err != nil {
			h.scheduler = nil
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		h.entries[name] = id

		h.logger.WithFields(map[string]interface{}{
			"job":      name,
			"schedule": j.schedule,
		}).Info("Job scheduled")
	}

	h.scheduler.Start()
	h.logger.WithFields(map[string]interface{}{"jobs": len(h.jobs)}).Info("Housekeeper started")
	return nil
}

// Stop halts scheduling and waits for running jobs or ctx, whichever comes first
func (h *Housekeeper) Stop(ctx context.Context) {
	h.mu.Lock()
	scheduler := h.scheduler
	h.scheduler = nil
	h.entries = make(map[string]cron.EntryID)
	h.mu.Unlock()

	if scheduler == nil {
		return
	}

	select {
	case <-scheduler.Stop().Done():
		h.logger.Info("Housekeeper stopped")
	case <-ctx.Done():
		h.logger.Warn("Housekeeper stop timed out with jobs still running")
	}
}

// IsRunning returns whether the scheduler is running
func (h *Housekeeper) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scheduler != nil
}

// NextRun returns when the named job fires next. ok is false when it is not scheduled.
func (h *Housekeeper) NextRun(name string) (next time.Time, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, exists := h.entries[name]
	if !exists || h.scheduler == nil {
		return time.Time{}, false
	}
	return h.scheduler.Entry(id).Next, true
}

// RunNow executes a job immediately and returns how many records it touched
func (h *Housekeeper) RunNow(ctx context.Context, name string) (int64, error) {
	j, ok := h.jobs[name]
	if !ok {
		return 0, fmt.Errorf("unknown job: %s", name)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.run(ctx)
	log := h.logger.WithFields(map[string]interface{}{
		"job":         name,
		"affected":    n,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		metrics.RecordJobRun(name, "failed")
		log.ErrorWithErr(err, "Housekeeping job failed")
		return n, err
	}

	metrics.RecordJobRun(name, "succeeded")
	log.Info("Housekeeping job completed")
	return n, nil
}
