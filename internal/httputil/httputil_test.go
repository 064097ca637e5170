package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "zone overlaps zone 3")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), `"zone overlaps zone 3"`) {
		t.Errorf("body = %q, want error message", rec.Body.String())
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"count": 3})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count":3`) {
		t.Errorf("body = %q, want count payload", rec.Body.String())
	}
}

func TestReadJSON(t *testing.T) {
	var payload struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Dock A"}`))
	if err := ReadJSON(req, &payload); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if payload.Name != "Dock A" {
		t.Errorf("name = %q, want Dock A", payload.Name)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":1}`))
	if err := ReadJSON(req, &payload); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestMockClientQueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		QueueResponse(http.StatusAccepted, `{"ok":true}`).
		QueueError(errors.New("connection refused"))

	resp, err := m.Post("http://example.test/hook", "application/json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}

	if _, err := m.Get("http://example.test/hook"); err == nil {
		t.Fatal("queued error not returned")
	}

	if m.RequestCount() != 2 {
		t.Errorf("request count = %d, want 2", m.RequestCount())
	}
	if m.Bodies[0] != `{"a":1}` {
		t.Errorf("recorded body = %q", m.Bodies[0])
	}
	if ct := m.Requests[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestMockClientDefaultResponse(t *testing.T) {
	m := NewMockHTTPClient()
	resp, err := m.Get("http://example.test/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}
