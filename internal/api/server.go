// Package api exposes the HTTP admin surface: zone management, tracked
// object listings, dwell reports, detection ingest, metrics, and the live
// event stream.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/palletworks/palletwatch/internal/config"
	"github.com/palletworks/palletwatch/internal/db"
	"github.com/palletworks/palletwatch/internal/geom"
	"github.com/palletworks/palletwatch/internal/httputil"
	"github.com/palletworks/palletwatch/internal/monitoring"
	"github.com/palletworks/palletwatch/internal/track"
	"github.com/palletworks/palletwatch/internal/version"
	"github.com/palletworks/palletwatch/internal/zones"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Ingestor runs one tracking cycle over pushed detections. Implemented by
// service.Worker.
type Ingestor interface {
	RunCycle(detections []track.Detection, imageName string, now time.Time) (*track.CycleResult, error)
}

type Server struct {
	records  *db.DB
	store    *db.ObjectStore
	zones    *zones.Manager
	cfg      *config.Config
	ingestor Ingestor
	events   http.Handler
}

// NewServer wires the admin surface. ingestor and events may be nil; the
// matching endpoints then report unavailable.
func NewServer(records *db.DB, store *db.ObjectStore, zm *zones.Manager, cfg *config.Config, ingestor Ingestor, events http.Handler) *Server {
	return &Server{
		records:  records,
		store:    store,
		zones:    zm,
		cfg:      cfg,
		ingestor: ingestor,
		events:   events,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/zones", s.handleZones)
	mux.HandleFunc("/api/zones/", s.handleZoneByID)
	mux.HandleFunc("/api/zones/validate", s.validateZone)
	mux.HandleFunc("/api/zones/enabled", s.handleZonesEnabled)
	mux.HandleFunc("/api/objects", s.listObjects)
	mux.HandleFunc("/api/snapshots", s.listSnapshots)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/api/report/chart", s.showReportChart)
	mux.HandleFunc("/api/ingest", s.ingestDetections)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	if s.events != nil {
		mux.Handle("/ws", s.events)
	}
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Ping(); err != nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, fmt.Sprintf("database unavailable: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "version": version.String()})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"tolerance_pct":            s.cfg.TolerancePct,
		"grace_window_minutes":     s.cfg.GraceWindowMinutes,
		"alert_threshold_minutes":  s.cfg.AlertThresholdMinutes,
		"alert_resend_minutes":     s.cfg.AlertResendMinutes,
		"capture_interval_seconds": s.cfg.CaptureIntervalSeconds,
		"frame_width":              s.cfg.FrameWidth,
		"frame_height":             s.cfg.FrameHeight,
		"site":                     s.cfg.Site,
		"location":                 s.cfg.Location,
	})
}

// listObjects returns active objects by default; ?all=1 includes recent
// deactivated records.
func (s *Server) listObjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	var objects []track.TrackedObject
	var err error
	if r.URL.Query().Get("all") == "1" {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, parseErr := strconv.Atoi(l)
			if parseErr != nil || parsed < 1 || parsed > 1000 {
				httputil.BadRequest(w, "invalid 'limit' parameter")
				return
			}
			limit = parsed
		}
		objects, err = s.store.RecentObjects(limit)
	} else {
		objects, err = s.store.ActiveObjects()
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve objects: %v", err))
		return
	}
	if objects == nil {
		objects = []track.TrackedObject{}
	}
	httputil.WriteJSONOK(w, objects)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	snapshots, err := s.records.RecentSnapshots(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve snapshots: %v", err))
		return
	}
	if snapshots == nil {
		snapshots = []db.Snapshot{}
	}
	httputil.WriteJSONOK(w, snapshots)
}

func (s *Server) reportWindow(r *http.Request) (time.Time, error) {
	days := 1
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			return time.Time{}, fmt.Errorf("invalid 'days' parameter")
		}
		days = parsed
	}
	return time.Now().AddDate(0, 0, -days), nil
}

type ingestRequest struct {
	ImageName  string            `json:"image_name"`
	Detections []track.Detection `json:"detections"`
}

// ingestDetections accepts one cycle's worth of detector output and runs it
// through the tracking engine.
func (s *Server) ingestDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.ingestor == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "detection ingest not configured")
		return
	}

	var req ingestRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	for i := range req.Detections {
		d := &req.Detections[i]
		if _, err := track.ParseClass(string(d.Class)); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if d.Center == (geom.Point{}) {
			d.Center = d.BBox.Center()
		}
	}

	result, err := s.ingestor.RunCycle(req.Detections, req.ImageName, time.Now())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("cycle failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, result)
}
