// Package zones owns the set of named polygonal regions used to classify
// object positions. The persisted form is a whole-set JSON snapshot
// ({zones: [...], enabled: bool}); every mutation re-validates the full set
// under a mutex before committing, because the admin API may race with the
// tracking cycle reading the same data.
package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/palletworks/palletwatch/internal/geom"
)

const (
	// MaxZones caps the number of zones in the active set.
	MaxZones = 20
	// MinVertices and MaxVertices bound a zone polygon.
	MinVertices = 3
	MaxVertices = 8
)

// RegionType classifies what a zone is for.
type RegionType string

const (
	RegionInbound  RegionType = "inbound"
	RegionOutbound RegionType = "outbound"
)

// Zone is a named polygonal region in normalized [0,1]x[0,1] coordinates.
type Zone struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	Polygon          geom.Polygon `json:"polygon"`
	ThresholdPercent float64      `json:"threshold_percent"`
	AlertThreshold   int          `json:"alert_threshold"` // minutes, > 0
	RegionType       RegionType   `json:"region_type"`
	Active           bool         `json:"active"`
}

// Set is the persisted zone document.
type Set struct {
	Zones   []Zone `json:"zones"`
	Enabled bool   `json:"enabled"`
}

// ValidationError reports the first failed validation check. It is always
// recoverable and never corrupts stored state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrZoneNotFound is returned by Update and Delete for an unknown zone id.
var ErrZoneNotFound = errors.New("zone not found")

// Validate checks a single zone. Checks run in a fixed order and the first
// failure determines the reported error.
func Validate(z Zone) error {
	if z.ID == 0 {
		return validationErrorf("zone id is required")
	}
	if z.Name == "" {
		return validationErrorf("zone name cannot be empty")
	}
	if len(z.Polygon) < MinVertices {
		return validationErrorf("zone must have at least %d points", MinVertices)
	}
	if len(z.Polygon) > MaxVertices {
		return validationErrorf("zone cannot have more than %d points", MaxVertices)
	}
	for i, pt := range z.Polygon {
		if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
			return validationErrorf("point %d coordinates must be between 0.0 and 1.0", i)
		}
	}
	if z.ThresholdPercent <= 0 || z.ThresholdPercent > 100 {
		return validationErrorf("threshold percent must be between 1 and 100")
	}
	if z.AlertThreshold <= 0 {
		return validationErrorf("alert threshold must be positive")
	}
	if z.RegionType != RegionInbound && z.RegionType != RegionOutbound {
		return validationErrorf("region type must be %q or %q", RegionInbound, RegionOutbound)
	}
	return nil
}

// ValidateSet checks an entire zone list: per-zone validity, the MaxZones
// cap, duplicate ids and names, and pairwise polygon overlap. The first
// conflicting pair is reported.
func ValidateSet(zs []Zone) error {
	if len(zs) > MaxZones {
		return validationErrorf("cannot have more than %d zones", MaxZones)
	}
	for i, z := range zs {
		if err := Validate(z); err != nil {
			return validationErrorf("zone %d: %s", i+1, err.Error())
		}
	}
	ids := make(map[int]bool, len(zs))
	names := make(map[string]bool, len(zs))
	for _, z := range zs {
		if ids[z.ID] {
			return validationErrorf("duplicate zone id %d", z.ID)
		}
		ids[z.ID] = true
		if names[z.Name] {
			return validationErrorf("duplicate zone name %q", z.Name)
		}
		names[z.Name] = true
	}
	for i := 0; i < len(zs); i++ {
		for j := i + 1; j < len(zs); j++ {
			if geom.Overlaps(zs[i].Polygon, zs[j].Polygon) {
				return validationErrorf("zones %q and %q overlap", zs[i].Name, zs[j].Name)
			}
		}
	}
	return nil
}

// Manager owns the persisted zone set. All mutating operations run
// load-validate-save as one critical section.
type Manager struct {
	mu   sync.Mutex
	path string
}

// NewManager returns a manager persisting to the given snapshot file. The
// file is created lazily on the first mutation.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load returns the persisted zone set. A missing or corrupt snapshot yields
// an empty, disabled set rather than an error; the tracking path must keep
// running regardless of admin-side state.
func (m *Manager) Load() Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() Set {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Set{}
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return Set{}
	}
	return s
}

// saveLocked writes the full set atomically (temp file + rename).
func (m *Manager) saveLocked(s Set) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal zone set: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create zone config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "zones-*.json")
	if err != nil {
		return fmt.Errorf("create zone temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write zone set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close zone temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace zone set: %w", err)
	}
	return nil
}

// Add validates the new zone against the existing set and persists it.
func (m *Manager) Add(z Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.loadLocked()
	if len(s.Zones) >= MaxZones {
		return validationErrorf("cannot add more than %d zones", MaxZones)
	}
	if err := Validate(z); err != nil {
		return err
	}
	for _, existing := range s.Zones {
		if existing.ID == z.ID {
			return validationErrorf("zone with id %d already exists", z.ID)
		}
		if existing.Name == z.Name {
			return validationErrorf("zone with name %q already exists", z.Name)
		}
		if geom.Overlaps(z.Polygon, existing.Polygon) {
			return validationErrorf("zone overlaps with %q", existing.Name)
		}
	}
	s.Zones = append(s.Zones, z)
	return m.saveLocked(s)
}

// Update replaces the zone with the given id. Overlap and name checks
// exclude the zone being replaced.
func (m *Manager) Update(id int, z Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.loadLocked()
	idx := -1
	for i, existing := range s.Zones {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("update zone %d: %w", id, ErrZoneNotFound)
	}
	if err := Validate(z); err != nil {
		return err
	}
	for i, existing := range s.Zones {
		if i == idx {
			continue
		}
		if existing.Name == z.Name {
			return validationErrorf("zone with name %q already exists", z.Name)
		}
		if geom.Overlaps(z.Polygon, existing.Polygon) {
			return validationErrorf("zone overlaps with %q", existing.Name)
		}
	}
	s.Zones[idx] = z
	return m.saveLocked(s)
}

// Delete removes the zone with the given id.
func (m *Manager) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.loadLocked()
	kept := s.Zones[:0]
	found := false
	for _, z := range s.Zones {
		if z.ID == id {
			found = true
			continue
		}
		kept = append(kept, z)
	}
	if !found {
		return fmt.Errorf("delete zone %d: %w", id, ErrZoneNotFound)
	}
	s.Zones = kept
	return m.saveLocked(s)
}

// SetEnabled toggles the global zone-system flag.
func (m *Manager) SetEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.loadLocked()
	s.Enabled = enabled
	return m.saveLocked(s)
}

// Get returns the zone with the given id, or nil.
func (m *Manager) Get(id int) *Zone {
	s := m.Load()
	for i := range s.Zones {
		if s.Zones[i].ID == id {
			return &s.Zones[i]
		}
	}
	return nil
}

// ZoneForPoint returns the first active zone (in iteration order) whose
// polygon contains the normalized point, or nil when the system is disabled
// or no zone matches.
func (m *Manager) ZoneForPoint(x, y float64) *Zone {
	s := m.Load()
	if !s.Enabled {
		return nil
	}
	for i := range s.Zones {
		z := &s.Zones[i]
		if !z.Active {
			continue
		}
		if geom.PointInPolygon(geom.Point{X: x, Y: y}, z.Polygon) {
			return z
		}
	}
	return nil
}
