package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/palletworks/palletwatch/internal/httputil"
	"github.com/palletworks/palletwatch/internal/zones"
)

// writeZoneError maps zone failures onto status codes: validation problems
// are the client's fault, a missing zone is 404, anything else is 500.
func writeZoneError(w http.ResponseWriter, err error) {
	var verr *zones.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.BadRequest(w, verr.Reason)
	case errors.Is(err, zones.ErrZoneNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.zones.Load())
	case http.MethodPost:
		var z zones.Zone
		if err := httputil.ReadJSON(r, &z); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.zones.Add(z); err != nil {
			writeZoneError(w, err)
			return
		}
		httputil.WriteJSONCreated(w, z)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) zoneID(r *http.Request) (int, error) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/zones/")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid zone id %q", raw)
	}
	return id, nil
}

func (s *Server) handleZoneByID(w http.ResponseWriter, r *http.Request) {
	id, err := s.zoneID(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		z := s.zones.Get(id)
		if z == nil {
			httputil.NotFound(w, fmt.Sprintf("zone %d not found", id))
			return
		}
		httputil.WriteJSONOK(w, z)
	case http.MethodPut:
		var z zones.Zone
		if err := httputil.ReadJSON(r, &z); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		z.ID = id
		if err := s.zones.Update(id, z); err != nil {
			writeZoneError(w, err)
			return
		}
		httputil.WriteJSONOK(w, z)
	case http.MethodDelete:
		if err := s.zones.Delete(id); err != nil {
			writeZoneError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})
	default:
		httputil.MethodNotAllowed(w)
	}
}

// validateZone checks a zone payload against the stored set without saving
// anything. The UI calls this while the operator is drawing.
func (s *Server) validateZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var z zones.Zone
	if err := httputil.ReadJSON(r, &z); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := zones.Validate(z); err != nil {
		httputil.WriteJSONOK(w, map[string]interface{}{"valid": false, "reason": err.Error()})
		return
	}
	set := s.zones.Load()
	candidate := make([]zones.Zone, 0, len(set.Zones)+1)
	for _, existing := range set.Zones {
		if existing.ID == z.ID {
			continue
		}
		candidate = append(candidate, existing)
	}
	candidate = append(candidate, z)
	if err := zones.ValidateSet(candidate); err != nil {
		httputil.WriteJSONOK(w, map[string]interface{}{"valid": false, "reason": err.Error()})
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"valid": true})
}

func (s *Server) handleZonesEnabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]bool{"enabled": s.zones.Load().Enabled})
	case http.MethodPut:
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.zones.SetEnabled(req.Enabled); err != nil {
			writeZoneError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]bool{"enabled": req.Enabled})
	default:
		httputil.MethodNotAllowed(w)
	}
}
