package track

import (
	"errors"
	"time"

	"github.com/palletworks/palletwatch/internal/geom"
)

// ErrRecordNotFound is returned by Store.Update for an unknown object id.
// Mid-cycle it indicates a logic or race bug between store and engine; the
// engine skips the detection and keeps processing the rest of the cycle.
var ErrRecordNotFound = errors.New("tracked object not found")

// UpdateResult reports the outcome of a Store.Update call.
type UpdateResult struct {
	Duration time.Duration
	Status   Status
	// BecameOvertime is true only on the call that set the overtime latch.
	BecameOvertime bool
}

// Store is the persistence contract for tracked objects. The concrete
// mechanism (sqlite here, see internal/db) is a collaborator; the engine
// only mutates records through this interface.
type Store interface {
	// ActiveObjects returns every record with the active flag set.
	ActiveObjects() ([]TrackedObject, error)

	// Create inserts a new record with first-seen = last-seen = cycleTime,
	// detection count 1, StatusNormal, active.
	Create(d Detection, cycleTime time.Time, seq int, displayName string) (TrackedObject, error)

	// Update records another sighting: last-seen and detection count move,
	// duration is recomputed from first-seen, and the record transitions to
	// StatusOvertime (latching OvertimeStartedAt exactly once) when the
	// duration exceeds the store's alert threshold.
	Update(id string, cycleTime time.Time) (UpdateResult, error)

	// DeactivateMissing deactivates every active record whose id is not in
	// matchedIDs and returns how many were deactivated.
	DeactivateMissing(matchedIDs []string) (int, error)

	// FindRecentlyDeactivated returns the most recently deactivated record
	// of the class deactivated within window of now whose stored position is
	// within the frame-relative tolerance of center, or nil.
	FindRecentlyDeactivated(class ObjectClass, center geom.Point, frameW, frameH int, window time.Duration, now time.Time) (*TrackedObject, error)
}

// Sequencer allocates per-class, per-day sequence numbers for display names.
type Sequencer interface {
	NextSequence(class ObjectClass, day time.Time) (int, error)
}
