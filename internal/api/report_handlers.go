package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/palletworks/palletwatch/internal/httputil"
	"github.com/palletworks/palletwatch/internal/report"
)

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	since, err := s.reportWindow(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	mins, err := s.store.DwellMinutes(since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve dwell durations: %v", err))
		return
	}
	httputil.WriteJSONOK(w, report.Summarize(mins, float64(s.cfg.AlertThresholdMinutes)))
}

func (s *Server) showReportChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	since, err := s.reportWindow(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	mins, err := s.store.DwellMinutes(since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve dwell durations: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := report.RenderChart(&buf, mins, float64(s.cfg.AlertThresholdMinutes), since); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
