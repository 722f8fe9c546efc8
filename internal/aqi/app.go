package aqi

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hellej/hope-graph-updater/internal/history"
)

// Default loop timings.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultRetryDelay   = 30 * time.Second
)

// Recorder stores history entries. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// App polls the Fetcher and the Updater until its context is cancelled.
type App struct {
	Log     log.FieldLogger
	Fetcher *Fetcher
	Updater *Updater

	// History and Metrics are optional.
	History Recorder
	Metrics *Metrics

	PollInterval time.Duration
	RetryDelay   time.Duration
}

// Run executes the update loop. It returns nil once ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("starting AQI updater app")
	poll := a.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	for {
		a.Step(ctx)
		if !sleep(ctx, poll) {
			a.Log.Info("stopping AQI updater app")
			return nil
		}
	}
}

// Step runs one iteration: fetch new AQI data if the current hour has not
// been processed, then export an edge update if the latest raster has not
// been exported.
func (a *App) Step(ctx context.Context) {
	if a.Fetcher.NewAvailable() {
		a.fetch(ctx)
	}
	if ctx.Err() != nil || a.Fetcher.Latest == "" {
		return
	}
	if a.Updater.NewUpdateAvailable(a.Fetcher.Latest) {
		a.update(ctx)
	}
}

func (a *App) fetch(ctx context.Context) {
	start := time.Now()
	res, err := a.Fetcher.FetchProcess(ctx)
	wip := a.Fetcher.WIP
	a.Fetcher.Finish()
	elapsed := time.Since(start)

	entry := history.Entry{Kind: history.KindFetch, Artifact: wip, Duration: elapsed}
	if err != nil {
		a.observe("fetch", "failed", elapsed)
		entry.Status, entry.Detail = history.StatusFailed, err.Error()
		a.record(ctx, entry)
		a.Log.WithError(err).Errorf("failed to process AQI data to %s, retrying in %s", wip, a.RetryDelay)
		sleep(ctx, a.RetryDelay)
		return
	}

	a.Log.Info("AQI fetch & processing succeeded")
	a.observe("fetch", "ok", elapsed)
	if a.Metrics != nil {
		a.Metrics.filledCells.Set(float64(res.Filled))
	}
	entry.Status = history.StatusOK
	entry.Artifact = res.Tif
	a.record(ctx, entry)
}

func (a *App) update(ctx context.Context) {
	tif := a.Fetcher.Latest
	start := time.Now()
	res, err := a.Updater.CreateUpdateCSV(tif)
	wip := a.Updater.WIPCSV
	a.Updater.Finish()
	elapsed := time.Since(start)

	entry := history.Entry{Kind: history.KindUpdate, Artifact: wip, Duration: elapsed}
	if err != nil {
		a.observe("update", "failed", elapsed)
		entry.Status, entry.Detail = history.StatusFailed, err.Error()
		a.record(ctx, entry)
		a.Log.WithError(err).Errorf("failed to update AQI from %s, retrying in %s", tif, a.RetryDelay)
		sleep(ctx, a.RetryDelay)
		return
	}

	a.Log.Info("AQI update succeeded")
	a.observe("update", "ok", elapsed)
	if a.Metrics != nil {
		a.Metrics.validRatio.Set(res.ValidRatio)
		a.Metrics.lastUpdate.SetToCurrentTime()
	}
	entry.Status = history.StatusOK
	entry.Artifact = res.CSV
	entry.ValidRatio = res.ValidRatio
	a.record(ctx, entry)
}

func (a *App) observe(step, status string, elapsed time.Duration) {
	if a.Metrics == nil {
		return
	}
	if step == "fetch" {
		a.Metrics.fetches.WithLabelValues(status).Inc()
	} else {
		a.Metrics.updates.WithLabelValues(status).Inc()
	}
	a.Metrics.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

func (a *App) record(ctx context.Context, e history.Entry) {
	if a.History == nil {
		return
	}
	// the step already finished; a cancelled loop still records it
	if _, err := a.History.Record(context.WithoutCancel(ctx), e); err != nil {
		a.Log.WithError(err).Warn("failed to record history entry")
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
