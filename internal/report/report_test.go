package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 30)
	if s.Count != 0 || s.MeanMinutes != 0 || s.P95Minutes != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestSummarize(t *testing.T) {
	// 1..20 minutes, plus two long dwellers past the 30 minute threshold.
	var mins []float64
	for i := 1; i <= 20; i++ {
		mins = append(mins, float64(i))
	}
	mins = append(mins, 45, 90)

	s := Summarize(mins, 30)
	if s.Count != 22 {
		t.Errorf("count = %d, want 22", s.Count)
	}
	if s.MaxMinutes != 90 {
		t.Errorf("max = %v, want 90", s.MaxMinutes)
	}
	if s.OvertimeCount != 2 {
		t.Errorf("overtime count = %d, want 2", s.OvertimeCount)
	}
	if s.P50Minutes < 10 || s.P50Minutes > 12 {
		t.Errorf("p50 = %v, want around 11", s.P50Minutes)
	}
	if s.P95Minutes < 20 || s.P95Minutes > 90 {
		t.Errorf("p95 = %v, out of range", s.P95Minutes)
	}
	if s.P50Minutes > s.P85Minutes || s.P85Minutes > s.P95Minutes {
		t.Errorf("percentiles not ordered: p50=%v p85=%v p95=%v", s.P50Minutes, s.P85Minutes, s.P95Minutes)
	}
}

func TestHistogram(t *testing.T) {
	mins := []float64{0, 5, 9.9, 10, 31, 59, 61, 200}
	buckets := Histogram(mins, 30)

	// Ceiling is 60 minutes, so buckets are 0-10 .. 50-60 plus 60+.
	if len(buckets) != 7 {
		t.Fatalf("got %d buckets, want 7", len(buckets))
	}
	if buckets[0].Label != "0-10" || buckets[0].Count != 3 {
		t.Errorf("bucket 0 = %+v, want 0-10 x3", buckets[0])
	}
	if buckets[1].Count != 1 {
		t.Errorf("bucket 1 count = %d, want 1", buckets[1].Count)
	}
	if buckets[3].Count != 1 {
		t.Errorf("bucket 3 count = %d, want 1 (the 31m dwell)", buckets[3].Count)
	}
	if buckets[5].Label != "50-60" || buckets[5].Count != 1 {
		t.Errorf("bucket 5 = %+v, want 50-60 x1", buckets[5])
	}
	if buckets[6].Label != "60+" || buckets[6].Count != 2 {
		t.Errorf("last bucket = %+v, want 60+ x2", buckets[6])
	}
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	err := RenderChart(&buf, []float64{5, 15, 35}, 30, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RenderChart: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Dwell Time Distribution") {
		t.Error("chart title missing")
	}
	if !strings.Contains(html, "echarts") {
		t.Error("echarts assets missing")
	}
}
