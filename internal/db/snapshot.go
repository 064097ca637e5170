package db

import (
	"fmt"
	"time"
)

// Snapshot is the record of one capture cycle: when it ran, what image it
// came from, and how many objects the detector reported.
type Snapshot struct {
	ID            int64     `json:"id"`
	TakenAt       time.Time `json:"taken_at"`
	ImageName     string    `json:"image_name"`
	DetectedCount int       `json:"detected_count"`
	Site          int       `json:"site"`
	Location      int       `json:"location"`
}

// InsertSnapshot stores the cycle record and fills in its id.
func (db *DB) InsertSnapshot(s *Snapshot) error {
	result, err := db.Exec(`
		INSERT INTO snapshots (taken_unix_nanos, image_name, detected_count, site, location)
		VALUES (?, ?, ?, ?, ?)`,
		s.TakenAt.UnixNano(), s.ImageName, s.DetectedCount, s.Site, s.Location,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot insert id: %w", err)
	}
	s.ID = id
	return nil
}

// RecentSnapshots lists the newest cycle records.
func (db *DB) RecentSnapshots(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, taken_unix_nanos, image_name, detected_count, site, location
		FROM snapshots
		ORDER BY taken_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var taken int64
		if err := rows.Scan(&s.ID, &taken, &s.ImageName, &s.DetectedCount, &s.Site, &s.Location); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.TakenAt = time.Unix(0, taken)
		out = append(out, s)
	}
	return out, rows.Err()
}
