package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/palletworks/palletwatch/internal/config"
	"github.com/palletworks/palletwatch/internal/db"
	"github.com/palletworks/palletwatch/internal/geom"
	"github.com/palletworks/palletwatch/internal/monitoring"
	"github.com/palletworks/palletwatch/internal/track"
	"github.com/palletworks/palletwatch/internal/zones"
)

func init() {
	monitoring.SetLogger(nil)
}

type stubIngestor struct {
	result *track.CycleResult
	err    error
	got    []track.Detection
}

func (s *stubIngestor) RunCycle(detections []track.Detection, imageName string, now time.Time) (*track.CycleResult, error) {
	s.got = detections
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func setupServer(t *testing.T, ingestor Ingestor) (*Server, *db.ObjectStore) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	cfg := config.New()
	store := db.NewObjectStore(database, cfg.AlertThreshold(), cfg.TolerancePct)
	zm := zones.NewManager(filepath.Join(dir, "zones.json"))
	return NewServer(database, store, zm, cfg, ingestor, nil), store
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func dockZone(id int, name string, x0 float64) zones.Zone {
	return zones.Zone{
		ID:   id,
		Name: name,
		Polygon: geom.Polygon{
			{X: x0, Y: 0.1}, {X: x0 + 0.2, Y: 0.1},
			{X: x0 + 0.2, Y: 0.4}, {X: x0, Y: 0.4},
		},
		ThresholdPercent: 50,
		AlertThreshold:   30,
		RegionType:       zones.RegionInbound,
		Active:           true,
	}
}

func zoneJSON(t *testing.T, z zones.Zone) string {
	t.Helper()
	b, err := json.Marshal(z)
	if err != nil {
		t.Fatalf("marshal zone: %v", err)
	}
	return string(b)
}

func TestZoneCRUD(t *testing.T) {
	s, _ := setupServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/zones", zoneJSON(t, dockZone(1, "Dock A", 0.1)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/zones", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var set zones.Set
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatalf("unmarshal set: %v", err)
	}
	if len(set.Zones) != 1 || set.Zones[0].Name != "Dock A" {
		t.Fatalf("set = %+v", set)
	}

	renamed := dockZone(1, "Dock A2", 0.1)
	rec = doRequest(t, s, http.MethodPut, "/api/zones/1", zoneJSON(t, renamed))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/zones/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got zones.Zone
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal zone: %v", err)
	}
	if got.Name != "Dock A2" {
		t.Errorf("name = %q, want Dock A2", got.Name)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/zones/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, "/api/zones/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestZoneCreateRejectsOverlap(t *testing.T) {
	s, _ := setupServer(t, nil)

	if rec := doRequest(t, s, http.MethodPost, "/api/zones", zoneJSON(t, dockZone(1, "Dock A", 0.1))); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	// Same footprint, new id and name.
	rec := doRequest(t, s, http.MethodPost, "/api/zones", zoneJSON(t, dockZone(2, "Dock B", 0.15)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overlap status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "overlap") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestZoneValidateEndpoint(t *testing.T) {
	s, _ := setupServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/zones/validate", zoneJSON(t, dockZone(1, "Dock A", 0.1)))
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	var verdict struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("unmarshal verdict: %v", err)
	}
	if !verdict.Valid {
		t.Fatalf("valid zone rejected: %s", verdict.Reason)
	}

	bad := dockZone(1, "Dock A", 0.1)
	bad.ThresholdPercent = 0
	rec = doRequest(t, s, http.MethodPost, "/api/zones/validate", zoneJSON(t, bad))
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("unmarshal verdict: %v", err)
	}
	if verdict.Valid || verdict.Reason == "" {
		t.Errorf("verdict = %+v, want invalid with reason", verdict)
	}
}

func TestZonesEnabledToggle(t *testing.T) {
	s, _ := setupServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/zones/enabled", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "false") {
		t.Fatalf("initial enabled: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPut, "/api/zones/enabled", `{"enabled": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/zones/enabled", "")
	if !strings.Contains(rec.Body.String(), "true") {
		t.Errorf("enabled not persisted: %s", rec.Body.String())
	}
}

func TestListObjects(t *testing.T) {
	s, store := setupServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/objects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty listing = %s, want []", rec.Body.String())
	}

	d := track.Detection{
		Class:      track.ClassPallet,
		Center:     geom.Point{X: 650, Y: 370},
		BBox:       track.BBox{X1: 610, Y1: 340, X2: 690, Y2: 400},
		Confidence: 0.9,
	}
	if _, err := store.Create(d, time.Now(), 1, "PL-0001"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/objects", "")
	var objects []track.TrackedObject
	if err := json.Unmarshal(rec.Body.Bytes(), &objects); err != nil {
		t.Fatalf("unmarshal objects: %v", err)
	}
	if len(objects) != 1 || objects[0].DisplayName != "PL-0001" {
		t.Fatalf("objects = %+v", objects)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/objects?limit=bogus&all=1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	ingestor := &stubIngestor{result: &track.CycleResult{Matched: []string{"id-1"}}}
	s, _ := setupServer(t, ingestor)

	body := `{
		"image_name": "cap_0900.jpg",
		"detections": [
			{"class": "pallet", "bbox": {"x1": 610, "y1": 340, "x2": 690, "y2": 400}, "confidence": 0.92}
		]
	}`
	rec := doRequest(t, s, http.MethodPost, "/api/ingest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(ingestor.got) != 1 {
		t.Fatalf("ingestor got %d detections, want 1", len(ingestor.got))
	}
	// Center was derived from the bbox before the cycle ran.
	if c := ingestor.got[0].Center; c.X != 650 || c.Y != 370 {
		t.Errorf("center = (%v, %v), want (650, 370)", c.X, c.Y)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/ingest", `{"detections": [{"class": "forklift"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown class status = %d, want 400", rec.Code)
	}
}

func TestIngestWithoutIngestor(t *testing.T) {
	s, _ := setupServer(t, nil)
	rec := doRequest(t, s, http.MethodPost, "/api/ingest", `{"detections": []}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := setupServer(t, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestShowConfig(t *testing.T) {
	s, _ := setupServer(t, nil)
	rec := doRequest(t, s, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg["tolerance_pct"] != 0.15 {
		t.Errorf("tolerance_pct = %v", cfg["tolerance_pct"])
	}
}

func TestReportEndpoints(t *testing.T) {
	s, store := setupServer(t, nil)

	d := track.Detection{
		Class:  track.ClassPallet,
		Center: geom.Point{X: 650, Y: 370},
		BBox:   track.BBox{X1: 610, Y1: 340, X2: 690, Y2: 400},
	}
	o, err := store.Create(d, time.Now().Add(-40*time.Minute), 1, "PL-0001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(o.ID, time.Now()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
	var summary struct {
		Count         int `json:"count"`
		OvertimeCount int `json:"overtime_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.Count != 1 || summary.OvertimeCount != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/report/chart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chart status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Dwell Time Distribution") {
		t.Error("chart title missing")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/report?days=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupServer(t, nil)
	for _, path := range []string{"/api/zones", "/api/objects", "/api/report", "/api/config"} {
		rec := doRequest(t, s, http.MethodPatch, path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s PATCH status = %d, want 405", path, rec.Code)
		}
	}
}
