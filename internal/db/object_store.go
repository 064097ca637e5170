package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palletworks/palletwatch/internal/geom"
	"github.com/palletworks/palletwatch/internal/track"
)

// ObjectStore implements track.Store and track.Sequencer over sqlite.
type ObjectStore struct {
	db *DB

	// AlertThreshold is the dwell duration past which an object transitions
	// to overtime.
	AlertThreshold time.Duration
	// TolerancePct is the frame-relative positional tolerance used by the
	// grace-window lookup; it must match the engine's matching tolerance.
	TolerancePct float64
}

// NewObjectStore builds a store with the given lifecycle knobs.
func NewObjectStore(db *DB, alertThreshold time.Duration, tolerancePct float64) *ObjectStore {
	return &ObjectStore{db: db, AlertThreshold: alertThreshold, TolerancePct: tolerancePct}
}

const objectColumns = `
	id, seq, display_name, class, pos_x, pos_y,
	bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence,
	first_seen_unix_nanos, last_seen_unix_nanos, detection_count,
	status, overtime_started_unix_nanos, notify_count, is_active,
	deactivated_unix_nanos`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObject(row rowScanner) (*track.TrackedObject, error) {
	var (
		o                   track.TrackedObject
		class, status       string
		firstSeen, lastSeen int64
		overtimeStarted     sql.NullInt64
		deactivated         sql.NullInt64
		active              int
	)
	err := row.Scan(
		&o.ID, &o.Seq, &o.DisplayName, &class, &o.Center.X, &o.Center.Y,
		&o.BBox.X1, &o.BBox.Y1, &o.BBox.X2, &o.BBox.Y2, &o.Confidence,
		&firstSeen, &lastSeen, &o.DetectionCount,
		&status, &overtimeStarted, &o.NotifyCount, &active,
		&deactivated,
	)
	if err != nil {
		return nil, err
	}
	o.Class = track.ObjectClass(class)
	o.Status = track.Status(status)
	o.FirstSeen = time.Unix(0, firstSeen)
	o.LastSeen = time.Unix(0, lastSeen)
	o.Active = active != 0
	if overtimeStarted.Valid {
		t := time.Unix(0, overtimeStarted.Int64)
		o.OvertimeStartedAt = &t
	}
	if deactivated.Valid {
		t := time.Unix(0, deactivated.Int64)
		o.DeactivatedAt = &t
	}
	return &o, nil
}

// ActiveObjects returns every record with the active flag set, most recent
// first-seen first.
func (s *ObjectStore) ActiveObjects() ([]track.TrackedObject, error) {
	rows, err := s.db.Query(`
		SELECT `+objectColumns+`
		FROM tracked_objects
		WHERE is_active = 1
		ORDER BY first_seen_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("query active objects: %w", err)
	}
	defer rows.Close()

	var out []track.TrackedObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active object: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Get returns one record by id.
func (s *ObjectStore) Get(id string) (*track.TrackedObject, error) {
	row := s.db.QueryRow(`
		SELECT `+objectColumns+`
		FROM tracked_objects WHERE id = ?`, id)
	o, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, track.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	return o, nil
}

// Create inserts a new record for the detection with a fresh uuid.
func (s *ObjectStore) Create(d track.Detection, cycleTime time.Time, seq int, displayName string) (track.TrackedObject, error) {
	o := track.TrackedObject{
		ID:             uuid.New().String(),
		Seq:            seq,
		DisplayName:    displayName,
		Class:          d.Class,
		Center:         d.Center,
		BBox:           d.BBox,
		Confidence:     d.Confidence,
		FirstSeen:      cycleTime,
		LastSeen:       cycleTime,
		DetectionCount: 1,
		Status:         track.StatusNormal,
		Active:         true,
	}
	_, err := s.db.Exec(`
		INSERT INTO tracked_objects (
			id, seq, display_name, class, pos_x, pos_y,
			bbox_x1, bbox_y1, bbox_x2, bbox_y2, confidence,
			first_seen_unix_nanos, last_seen_unix_nanos,
			detection_count, status, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, 1)`,
		o.ID, o.Seq, o.DisplayName, string(o.Class), o.Center.X, o.Center.Y,
		o.BBox.X1, o.BBox.Y1, o.BBox.X2, o.BBox.Y2, o.Confidence,
		cycleTime.UnixNano(), cycleTime.UnixNano(), string(o.Status),
	)
	if err != nil {
		return track.TrackedObject{}, fmt.Errorf("insert object %s: %w", displayName, err)
	}
	return o, nil
}

// Update records another sighting of the object: last-seen and detection
// count move, and the record latches into overtime the first time its dwell
// duration exceeds the alert threshold. The latch column only ever moves
// from NULL to a value (COALESCE), never back.
func (s *ObjectStore) Update(id string, cycleTime time.Time) (track.UpdateResult, error) {
	row := s.db.QueryRow(`
		SELECT first_seen_unix_nanos, overtime_started_unix_nanos
		FROM tracked_objects WHERE id = ?`, id)

	var firstSeen int64
	var overtimeStarted sql.NullInt64
	err := row.Scan(&firstSeen, &overtimeStarted)
	if errors.Is(err, sql.ErrNoRows) {
		return track.UpdateResult{}, track.ErrRecordNotFound
	}
	if err != nil {
		return track.UpdateResult{}, fmt.Errorf("load object %s: %w", id, err)
	}

	duration := cycleTime.Sub(time.Unix(0, firstSeen))
	res := track.UpdateResult{Duration: duration, Status: track.StatusNormal}

	var latch sql.NullInt64
	if duration > s.AlertThreshold {
		res.Status = track.StatusOvertime
		res.BecameOvertime = !overtimeStarted.Valid
		latch = sql.NullInt64{Int64: cycleTime.UnixNano(), Valid: true}
	}

	_, err = s.db.Exec(`
		UPDATE tracked_objects
		SET last_seen_unix_nanos = ?,
		    detection_count = detection_count + 1,
		    status = ?,
		    overtime_started_unix_nanos = COALESCE(overtime_started_unix_nanos, ?)
		WHERE id = ?`,
		cycleTime.UnixNano(), string(res.Status), latch, id,
	)
	if err != nil {
		return track.UpdateResult{}, fmt.Errorf("update object %s: %w", id, err)
	}
	return res, nil
}

// DeactivateMissing deactivates every active record not in matchedIDs. The
// deactivation timestamp is the record's own last sighting, which is what
// the grace window is measured from.
func (s *ObjectStore) DeactivateMissing(matchedIDs []string) (int, error) {
	query := `
		UPDATE tracked_objects
		SET is_active = 0,
		    status = ?,
		    deactivated_unix_nanos = last_seen_unix_nanos
		WHERE is_active = 1`
	args := []interface{}{string(track.StatusDeactivated)}

	if len(matchedIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(matchedIDs)), ",")
		query += " AND id NOT IN (" + placeholders + ")"
		for _, id := range matchedIDs {
			args = append(args, id)
		}
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate missing objects: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate missing objects: %w", err)
	}
	return int(n), nil
}

// FindRecentlyDeactivated returns the most recently deactivated record of
// the class whose stored position is within the frame-relative tolerance of
// center and whose deactivation falls within window of now, or nil.
func (s *ObjectStore) FindRecentlyDeactivated(class track.ObjectClass, center geom.Point, frameW, frameH int, window time.Duration, now time.Time) (*track.TrackedObject, error) {
	tolX := float64(frameW) * s.TolerancePct
	tolY := float64(frameH) * s.TolerancePct
	cutoff := now.Add(-window).UnixNano()

	row := s.db.QueryRow(`
		SELECT `+objectColumns+`
		FROM tracked_objects
		WHERE is_active = 0
		  AND class = ?
		  AND deactivated_unix_nanos IS NOT NULL
		  AND deactivated_unix_nanos >= ?
		  AND ABS(pos_x - ?) <= ?
		  AND ABS(pos_y - ?) <= ?
		ORDER BY deactivated_unix_nanos DESC
		LIMIT 1`,
		string(class), cutoff, center.X, tolX, center.Y, tolY,
	)
	o, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recently deactivated: %w", err)
	}
	return o, nil
}

// NextSequence allocates the next per-class sequence number for the day the
// cycle time falls on.
func (s *ObjectStore) NextSequence(class track.ObjectClass, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var next int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) + 1
		FROM tracked_objects
		WHERE class = ?
		  AND first_seen_unix_nanos >= ?
		  AND first_seen_unix_nanos < ?`,
		string(class), start.UnixNano(), end.UnixNano(),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", class, err)
	}
	return next, nil
}

// RecentObjects lists the newest records by last sighting, active or not.
func (s *ObjectStore) RecentObjects(limit int) ([]track.TrackedObject, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT `+objectColumns+`
		FROM tracked_objects
		ORDER BY last_seen_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent objects: %w", err)
	}
	defer rows.Close()

	var out []track.TrackedObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent object: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// DwellMinutes returns the dwell duration in minutes of every object first
// seen at or after since. Used by the dwell report.
func (s *ObjectStore) DwellMinutes(since time.Time) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT (last_seen_unix_nanos - first_seen_unix_nanos) / 1e9 / 60.0
		FROM tracked_objects
		WHERE first_seen_unix_nanos >= ?
		ORDER BY first_seen_unix_nanos`,
		since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query dwell durations: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan dwell duration: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeDeactivatedBefore deletes deactivated records (and their
// notifications) whose last sighting is older than cutoff. Returns how many
// objects were removed.
func (s *ObjectStore) PurgeDeactivatedBefore(cutoff time.Time) (int64, error) {
	if _, err := s.db.Exec(`
		DELETE FROM notifications
		WHERE object_id IN (
			SELECT id FROM tracked_objects
			WHERE is_active = 0 AND last_seen_unix_nanos < ?
		)`, cutoff.UnixNano()); err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	result, err := s.db.Exec(`
		DELETE FROM tracked_objects
		WHERE is_active = 0 AND last_seen_unix_nanos < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge deactivated objects: %w", err)
	}
	return result.RowsAffected()
}
