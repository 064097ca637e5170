package service

import (
	"context"
	"fmt"
	"time"

	"github.com/palletworks/palletwatch/internal/alert"
	"github.com/palletworks/palletwatch/internal/config"
	"github.com/palletworks/palletwatch/internal/db"
	"github.com/palletworks/palletwatch/internal/monitoring"
	"github.com/palletworks/palletwatch/internal/track"
)

// Worker drives the detection loop. Each tick inside the operating window it
// pulls detections from the source and runs one cycle. Pushed detections
// (the ingest route) go through RunCycle directly.
type Worker struct {
	engine     *track.Engine
	records    *db.DB
	store      *db.ObjectStore
	dispatcher *alert.Dispatcher
	source     DetectionSource
	cfg        *config.Config

	Interval time.Duration
	StopChan chan struct{}

	lastPurge time.Time
}

// NewWorker wires the cycle loop. source may be nil when detections are only
// pushed.
func NewWorker(engine *track.Engine, records *db.DB, store *db.ObjectStore, dispatcher *alert.Dispatcher, source DetectionSource, cfg *config.Config) *Worker {
	return &Worker{
		engine:     engine,
		records:    records,
		store:      store,
		dispatcher: dispatcher,
		source:     source,
		cfg:        cfg,
		Interval:   cfg.CaptureInterval(),
		StopChan:   make(chan struct{}),
	}
}

// Start runs the periodic cycle loop in a goroutine.
func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Logf("worker: cycle error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *Worker) Stop() {
	close(w.StopChan)
}

// WithinOperatingHours reports whether cycles should run at the given time.
// The window is [start, end) on the local clock; equal bounds mean always
// on.
func (w *Worker) WithinOperatingHours(now time.Time) bool {
	start, end := w.cfg.OperatingStartHour, w.cfg.OperatingEndHour
	if start == end {
		return true
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	// Overnight window, e.g. 22-6.
	return h >= start || h < end
}

// RunOnce performs one scheduled cycle: skip outside operating hours, fetch
// from the source, process. Nothing to fetch with no source configured.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := time.Now()
	if !w.WithinOperatingHours(now) {
		return nil
	}
	w.maybePurge(now)
	if w.source == nil {
		return nil
	}

	detections, imageName, err := w.source.Fetch(ctx)
	if err != nil {
		monitoring.CyclesTotal.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("fetch cycle input: %w", err)
	}
	_, err = w.RunCycle(detections, imageName, now)
	return err
}

// RunCycle records the snapshot, runs the engine, updates metrics, and
// dispatches overtime events.
func (w *Worker) RunCycle(detections []track.Detection, imageName string, now time.Time) (*track.CycleResult, error) {
	started := time.Now()

	snap := db.Snapshot{
		TakenAt:       now,
		ImageName:     imageName,
		DetectedCount: len(detections),
		Site:          w.cfg.Site,
		Location:      w.cfg.Location,
	}
	if err := w.records.InsertSnapshot(&snap); err != nil {
		monitoring.Logf("worker: record snapshot: %v", err)
	}

	for _, d := range detections {
		monitoring.DetectionsTotal.WithLabelValues(string(d.Class)).Inc()
	}

	result, err := w.engine.ProcessCycle(detections, w.cfg.FrameWidth, w.cfg.FrameHeight, now)
	if err != nil {
		monitoring.CyclesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("process cycle: %w", err)
	}

	monitoring.CyclesTotal.WithLabelValues("ok").Inc()
	monitoring.ActiveObjects.Set(float64(len(result.Matched) + len(result.Created)))
	monitoring.OvertimeEventsTotal.Add(float64(len(result.OvertimeEvents)))
	monitoring.CycleDuration.Observe(time.Since(started).Seconds())

	if w.dispatcher != nil && len(result.OvertimeEvents) > 0 {
		w.dispatcher.Dispatch(context.Background(), result.OvertimeEvents, now)
	}
	return result, nil
}

// maybePurge drops old deactivated records at most once a day.
func (w *Worker) maybePurge(now time.Time) {
	if w.cfg.RetentionDays <= 0 {
		return
	}
	if now.Sub(w.lastPurge) < 24*time.Hour {
		return
	}
	w.lastPurge = now

	cutoff := now.AddDate(0, 0, -w.cfg.RetentionDays)
	n, err := w.store.PurgeDeactivatedBefore(cutoff)
	if err != nil {
		monitoring.Logf("worker: purge old records: %v", err)
		return
	}
	if n > 0 {
		monitoring.Logf("worker: purged %d records older than %s", n, cutoff.Format(time.RFC3339))
	}
}
