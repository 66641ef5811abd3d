package store

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"

	"go.viam.com/sphereloc/logging"
)

const pruneTimeout = 30 * time.Second

// Retention periodically deletes records older than a maximum age.
type Retention struct {
	store     *Store
	maxAge    time.Duration
	scheduler gocron.Scheduler
	logger    logging.Logger
}

// StartRetention prunes st right away and then every interval until Close is called.
func StartRetention(st *Store, maxAge, interval time.Duration, logger logging.Logger) (*Retention, error) {
	if maxAge <= 0 {
		return nil, errors.Errorf("retention must be positive, got %s", maxAge)
	}
	if interval <= 0 {
		return nil, errors.Errorf("prune interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create prune scheduler")
	}
	r := &Retention{store: st, maxAge: maxAge, scheduler: scheduler, logger: logger}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.prune),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return nil, errors.Wrap(err, "cannot schedule pruning")
	}
	scheduler.Start()
	return r, nil
}

func (r *Retention) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	cutoff := r.store.clock.Now().Add(-r.maxAge)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Warnw("cannot prune localizations", "error", err)
		return
	}
	if n > 0 {
		r.logger.Infow("pruned localizations", "deleted", n, "cutoff", cutoff)
	}
}

// Close stops pruning and waits for a running prune to finish.
func (r *Retention) Close() error {
	return r.scheduler.Shutdown()
}
