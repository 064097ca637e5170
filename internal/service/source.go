// Package service schedules detection cycles: it pulls detector output,
// feeds the tracking engine, records snapshots, and hands overtime events to
// the alert dispatcher.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/palletworks/palletwatch/internal/httputil"
	"github.com/palletworks/palletwatch/internal/track"
)

// DetectionSource supplies one cycle's detections. The detection model runs
// outside this process; sources only move its output.
type DetectionSource interface {
	Fetch(ctx context.Context) (detections []track.Detection, imageName string, err error)
}

// HTTPDetectionSource polls a detector endpoint that answers with the same
// payload the ingest route accepts.
type HTTPDetectionSource struct {
	URL    string
	Client httputil.HTTPClient
}

// NewHTTPDetectionSource builds a source over the given endpoint; a nil
// client gets the standard one.
func NewHTTPDetectionSource(url string, client httputil.HTTPClient) *HTTPDetectionSource {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &HTTPDetectionSource{URL: url, Client: client}
}

type detectionPayload struct {
	ImageName  string            `json:"image_name"`
	Detections []track.Detection `json:"detections"`
}

func (s *HTTPDetectionSource) Fetch(ctx context.Context) ([]track.Detection, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build detector request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch detections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("detector returned %d", resp.StatusCode)
	}

	var payload detectionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("decode detector payload: %w", err)
	}
	for i := range payload.Detections {
		d := &payload.Detections[i]
		if _, err := track.ParseClass(string(d.Class)); err != nil {
			return nil, "", fmt.Errorf("detector payload: %w", err)
		}
		if d.Center.X == 0 && d.Center.Y == 0 {
			d.Center = d.BBox.Center()
		}
	}
	return payload.Detections, payload.ImageName, nil
}
