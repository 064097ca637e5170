// Package track implements the cross-cycle correlation and lifecycle engine:
// position-based matching of per-cycle detections against the persisted
// active set, overtime state transitions, and the grace-window re-attachment
// rule that stops detector flicker from resetting the overtime clock.
package track

import (
	"fmt"
	"time"

	"github.com/palletworks/palletwatch/internal/geom"
)

// ObjectClass is the closed set of object kinds the detector reports. The
// class is decided once at the ingestion boundary; nothing downstream parses
// class strings again.
type ObjectClass string

const (
	ClassPallet ObjectClass = "pallet"
	ClassPerson ObjectClass = "person"
)

// ParseClass maps a raw detector label onto the closed enum.
func ParseClass(label string) (ObjectClass, error) {
	switch ObjectClass(label) {
	case ClassPallet:
		return ClassPallet, nil
	case ClassPerson:
		return ClassPerson, nil
	}
	return "", fmt.Errorf("unknown object class %q", label)
}

// displayPrefixes drive per-class display names like PL-0001.
var displayPrefixes = map[ObjectClass]string{
	ClassPallet: "PL",
	ClassPerson: "PS",
}

// FormatDisplayName renders the display name for a class and sequence
// number. Sequence numbers are scoped per class and per day.
func FormatDisplayName(class ObjectClass, seq int) string {
	prefix, ok := displayPrefixes[class]
	if !ok {
		prefix = "OB"
	}
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// Status is the lifecycle state of a tracked object.
//
// New -> Normal (on create) -> Overtime (on update past the alert threshold)
// -> Deactivated (first cycle absent). Overtime never demotes back to Normal
// for the same record, and Deactivated is terminal; a reappearance creates a
// new record, optionally linked through the grace window.
type Status string

const (
	StatusNormal      Status = "normal"
	StatusOvertime    Status = "overtime"
	StatusDeactivated Status = "deactivated"
)

// BBox is a pixel-space bounding box.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the box midpoint.
func (b BBox) Center() geom.Point {
	return geom.Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Detection is one detector output for one object in one cycle. Detections
// are ephemeral; they are consumed by ProcessCycle and never stored as-is.
type Detection struct {
	Class      ObjectClass `json:"class"`
	BBox       BBox        `json:"bbox"`
	Center     geom.Point  `json:"center"`
	Confidence float64     `json:"confidence"`
}

// TrackedObject is the persistent record for one physically distinct object.
type TrackedObject struct {
	ID             string      `json:"id"`
	Seq            int         `json:"seq"`
	DisplayName    string      `json:"display_name"`
	Class          ObjectClass `json:"class"`
	Center         geom.Point  `json:"center"`
	BBox           BBox        `json:"bbox"`
	Confidence     float64     `json:"confidence"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	DetectionCount int         `json:"detection_count"`
	Status         Status      `json:"status"`
	// OvertimeStartedAt is non-nil iff the record has ever reached
	// StatusOvertime. Once set it never changes for the life of the record.
	OvertimeStartedAt *time.Time `json:"overtime_started_at,omitempty"`
	NotifyCount       int        `json:"notify_count"`
	Active            bool       `json:"active"`
	DeactivatedAt     *time.Time `json:"deactivated_at,omitempty"`
}

// Duration is the tracked dwell time as of the last sighting.
func (o *TrackedObject) Duration() time.Duration {
	return o.LastSeen.Sub(o.FirstSeen)
}

// OvertimeEvent is the per-cycle alert payload for one object over its
// threshold. The caller hands these to the notification collaborator.
type OvertimeEvent struct {
	ObjectID    string        `json:"object_id"`
	DisplayName string        `json:"display_name"`
	Class       ObjectClass   `json:"class"`
	Duration    time.Duration `json:"duration"`
	// Continuation marks an event re-emitted through the grace window for an
	// object that flickered out and reappeared; its duration is the prior
	// record's accumulated dwell time.
	Continuation bool `json:"continuation,omitempty"`
}

// CycleResult summarizes one ProcessCycle invocation.
type CycleResult struct {
	Matched        []string        `json:"matched"`
	Created        []TrackedObject `json:"created"`
	Deactivated    int             `json:"deactivated"`
	OvertimeEvents []OvertimeEvent `json:"overtime_events"`
}
