// Package watch refits a remote source on a cron schedule.
package watch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/ingest"
	"github.com/verte-zerg/tuifit/internal/model"
)

// Loader resolves a source into a series.
type Loader interface {
	Load(ctx context.Context, source string) (model.Series, ingest.Format, error)
}

// Recorder stores published fits.
type Recorder interface {
	InsertFit(ctx context.Context, rec model.FitRecord) (int64, error)
}

// Watcher periodically reloads a source and refits its full extent with the
// reset trigger. Runs never overlap.
type Watcher struct {
	Cron     *cron.Cron
	Loader   Loader
	Recorder Recorder
	Logger   *log.Logger
	Ctx      context.Context
	// OnPublish, when set, receives every new publication.
	OnPublish func(fit.Publication)
	// Now defaults to time.Now.
	Now func() time.Time

	source  string
	mu      sync.Mutex
	session *fit.Session
}

// New creates a Watcher for source. rec may be nil.
func New(ctx context.Context, source string, loader Loader, fitter *fit.Fitter, rec Recorder, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		Cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger)))),
		Loader:   loader,
		Recorder: rec,
		Logger:   logger,
		Ctx:      ctx,
		Now:      time.Now,
		source:   source,
		session:  fit.NewSession(source, model.Series{}, fitter),
	}
}

// SessionID identifies the records written by this watcher.
func (w *Watcher) SessionID() string {
	return w.session.ID
}

// Register schedules refits with a standard cron spec or descriptor such as
// "@every 5m".
func (w *Watcher) Register(schedule string) error {
	if _, err := w.Cron.AddFunc(schedule, w.task); err != nil {
		return fmt.Errorf("register watch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (w *Watcher) Start() {
	w.Cron.Start()
	w.Logger.Printf("[INFO] watching %s", w.source)
}

// Stop stops the scheduler and waits for a running refit to finish.
func (w *Watcher) Stop() {
	<-w.Cron.Stop().Done()
	w.Logger.Println("[INFO] watch stopped")
}

func (w *Watcher) task() {
	if _, _, err := w.RunOnce(); err != nil {
		w.Logger.Printf("[WARN] refit %s: %v", w.source, err)
	}
}

// RunOnce loads the source and fits its full extent. Each run starts from a
// fresh controller state.
func (w *Watcher) RunOnce() (fit.Publication, fit.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	source := w.source
	series, _, err := w.Loader.Load(w.Ctx, source)
	if err != nil {
		return fit.Publication{}, fit.OutcomeUnchanged, err
	}
	w.session.Reload(source, series)
	bounds, ok := series.Bounds()
	if !ok {
		return fit.Publication{}, fit.OutcomeEmpty, fmt.Errorf("%s has no data", source)
	}
	w.session.Observe(bounds)
	pub, outcome, err := w.session.FitReset(bounds)
	if err != nil {
		return pub, outcome, err
	}
	if outcome != fit.OutcomeFitted {
		w.Logger.Printf("[INFO] %s: nothing to fit (%s)", source, outcome)
		return pub, outcome, nil
	}

	w.Logger.Printf("[INFO] %s: tau=%s half-life=%s rate=%s points=%d status=%s",
		source, pub.Tau, pub.HalfLife, pub.Rate, len(pub.Points), pub.Result.Status)
	if pub.ShowWarning {
		w.Logger.Printf("[WARN] %s: fit did not converge", source)
	}
	if w.Recorder != nil {
		if _, err := w.Recorder.InsertFit(w.Ctx, w.session.Record(pub, w.Now())); err != nil {
			w.Logger.Printf("[WARN] record fit: %v", err)
		}
	}
	if w.OnPublish != nil {
		w.OnPublish(pub)
	}
	return pub, outcome, nil
}
