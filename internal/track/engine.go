package track

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/palletworks/palletwatch/internal/geom"
	"github.com/palletworks/palletwatch/internal/monitoring"
)

// Config holds the engine's tuning knobs.
type Config struct {
	// TolerancePct is the fraction of each frame dimension an object may
	// drift between cycles and still be considered the same object.
	TolerancePct float64
	// GraceWindow bounds how long after deactivation a reappearing object at
	// a similar position is treated as a continuation rather than new.
	GraceWindow time.Duration
}

// DefaultConfig returns the default engine tuning.
func DefaultConfig() Config {
	return Config{
		TolerancePct: 0.15,
		GraceWindow:  5 * time.Minute,
	}
}

// Engine correlates one cycle's detections against the persisted active set.
// It is designed for one call per cycle; the caller must serialize cycles.
type Engine struct {
	store Store
	seq   Sequencer
	cfg   Config
}

// NewEngine builds an engine over the given store and sequence allocator.
func NewEngine(store Store, seq Sequencer, cfg Config) *Engine {
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = DefaultConfig().TolerancePct
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = DefaultConfig().GraceWindow
	}
	return &Engine{store: store, seq: seq, cfg: cfg}
}

// ProcessCycle runs one detection cycle: match detections to active objects
// under the frame-relative tolerance, update or create records, deactivate
// the unmatched, and return the overtime events for the caller to dispatch.
//
// A store failure while loading the active set makes the whole cycle a
// no-op (returned as an error); it must never be interpreted as "all
// objects disappeared".
func (e *Engine) ProcessCycle(detections []Detection, frameW, frameH int, now time.Time) (*CycleResult, error) {
	active, err := e.store.ActiveObjects()
	if err != nil {
		return nil, fmt.Errorf("load active objects: %w", err)
	}

	tolX := float64(frameW) * e.cfg.TolerancePct
	tolY := float64(frameH) * e.cfg.TolerancePct

	result := &CycleResult{}
	matchedIDs := make(map[string]bool)

	for _, d := range detections {
		match := e.findMatch(d, active, tolX, tolY)
		if match != nil {
			res, err := e.store.Update(match.ID, now)
			if errors.Is(err, ErrRecordNotFound) {
				// Store and engine disagree about this record; skip the
				// detection and keep the rest of the cycle alive.
				monitoring.Logf("tracking: update of %s (%s): %v", match.ID, match.DisplayName, err)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("update object %s: %w", match.ID, err)
			}
			if !matchedIDs[match.ID] {
				matchedIDs[match.ID] = true
				result.Matched = append(result.Matched, match.ID)
			}
			if res.Status == StatusOvertime {
				result.OvertimeEvents = append(result.OvertimeEvents, OvertimeEvent{
					ObjectID:    match.ID,
					DisplayName: match.DisplayName,
					Class:       match.Class,
					Duration:    res.Duration,
				})
			}
			continue
		}

		// No active match. Before starting a fresh clock, look for a record
		// of the same class deactivated moments ago at this position: a
		// detector flicker must not silently reset the overtime state.
		prior, err := e.store.FindRecentlyDeactivated(d.Class, d.Center, frameW, frameH, e.cfg.GraceWindow, now)
		if err != nil {
			return nil, fmt.Errorf("grace-window lookup: %w", err)
		}
		if prior != nil && prior.Status == StatusOvertime {
			result.OvertimeEvents = append(result.OvertimeEvents, OvertimeEvent{
				ObjectID:     prior.ID,
				DisplayName:  prior.DisplayName,
				Class:        prior.Class,
				Duration:     prior.Duration(),
				Continuation: true,
			})
			monitoring.Logf("tracking: %s reappeared within grace window, keeping overtime state (%.1f min)",
				prior.DisplayName, prior.Duration().Minutes())
		}

		created, err := e.createObject(d, now)
		if err != nil {
			return nil, err
		}
		matchedIDs[created.ID] = true
		result.Created = append(result.Created, created)
	}

	ids := make([]string, 0, len(matchedIDs))
	for id := range matchedIDs {
		ids = append(ids, id)
	}
	deactivated, err := e.store.DeactivateMissing(ids)
	if err != nil {
		return nil, fmt.Errorf("deactivate missing: %w", err)
	}
	result.Deactivated = deactivated

	return result, nil
}

// findMatch returns the active object of the detection's class nearest to
// the detection center, considering only candidates inside the axis-aligned
// tolerance box. The box is a hard gate; Euclidean distance only breaks ties
// among survivors.
func (e *Engine) findMatch(d Detection, active []TrackedObject, tolX, tolY float64) *TrackedObject {
	var best *TrackedObject
	minDist := math.Inf(1)
	for i := range active {
		o := &active[i]
		if o.Class != d.Class {
			continue
		}
		dx := math.Abs(d.Center.X - o.Center.X)
		dy := math.Abs(d.Center.Y - o.Center.Y)
		if dx > tolX || dy > tolY {
			continue
		}
		if dist := geom.Distance(d.Center, o.Center); dist < minDist {
			minDist = dist
			best = o
		}
	}
	return best
}

func (e *Engine) createObject(d Detection, now time.Time) (TrackedObject, error) {
	seq, err := e.seq.NextSequence(d.Class, now)
	if err != nil {
		return TrackedObject{}, fmt.Errorf("allocate sequence for %s: %w", d.Class, err)
	}
	name := FormatDisplayName(d.Class, seq)
	obj, err := e.store.Create(d, now, seq, name)
	if err != nil {
		return TrackedObject{}, fmt.Errorf("create object %s: %w", name, err)
	}
	monitoring.Logf("tracking: created %s (%s) at (%.0f,%.0f)", name, d.Class, d.Center.X, d.Center.Y)
	return obj, nil
}
