package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// Retention periodically deletes audit entries older than a fixed age.
type Retention struct {
	maxAge   time.Duration
	schedule string
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun time.Time
	purged  int64
}

// NewRetention builds a retention job. schedule is a standard cron spec or a
// descriptor such as "@daily".
func NewRetention(days int, schedule string) (*Retention, error) {
	if days <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", days)
	}
	if schedule == "" {
		schedule = "@daily"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return &Retention{
		maxAge:   time.Duration(days) * 24 * time.Hour,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// RunOnce purges entries older than the retention age.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	n, err := PurgeAuditLogs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.lastRun = r.now()
	r.purged += n
	r.mu.Unlock()
	if n > 0 {
		log.Infof("audit retention removed %d entries older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Start schedules RunOnce. It is a no-op if already started.
func (r *Retention) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			log.Errorf("audit retention: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts scheduling and waits for a running purge to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Stats returns the last run time and total purged count.
func (r *Retention) Stats() (time.Time, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.purged
}
