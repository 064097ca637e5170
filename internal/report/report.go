// Package report summarises dwell durations for the admin surface: summary
// percentiles as JSON and a rendered distribution chart.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the dwell-time distribution of one reporting window.
type Summary struct {
	Count         int     `json:"count"`
	MeanMinutes   float64 `json:"mean_minutes"`
	P50Minutes    float64 `json:"p50_minutes"`
	P85Minutes    float64 `json:"p85_minutes"`
	P95Minutes    float64 `json:"p95_minutes"`
	MaxMinutes    float64 `json:"max_minutes"`
	OvertimeCount int     `json:"overtime_count"`
}

// Summarize computes dwell statistics over durations in minutes.
// thresholdMinutes marks the overtime boundary for the OvertimeCount field.
func Summarize(dwellMinutes []float64, thresholdMinutes float64) Summary {
	if len(dwellMinutes) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(dwellMinutes))
	copy(sorted, dwellMinutes)
	sort.Float64s(sorted)

	s := Summary{
		Count:       len(sorted),
		MeanMinutes: stat.Mean(sorted, nil),
		P50Minutes:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P85Minutes:  stat.Quantile(0.85, stat.Empirical, sorted, nil),
		P95Minutes:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MaxMinutes:  sorted[len(sorted)-1],
	}
	for _, m := range sorted {
		if m > thresholdMinutes {
			s.OvertimeCount++
		}
	}
	return s
}

// bucketWidthMinutes is the histogram bin size for the dwell chart.
const bucketWidthMinutes = 10

// Bucket is one histogram bin of the dwell chart.
type Bucket struct {
	Label string
	Count int
}

// Histogram bins dwell durations into 10-minute buckets. The last bucket is
// open-ended at twice the overtime threshold so a few extreme dwellers do not
// stretch the axis.
func Histogram(dwellMinutes []float64, thresholdMinutes float64) []Bucket {
	ceiling := 2 * thresholdMinutes
	if ceiling < bucketWidthMinutes {
		ceiling = bucketWidthMinutes
	}
	n := int(ceiling) / bucketWidthMinutes

	buckets := make([]Bucket, n+1)
	for i := 0; i < n; i++ {
		buckets[i].Label = fmt.Sprintf("%d-%d", i*bucketWidthMinutes, (i+1)*bucketWidthMinutes)
	}
	buckets[n].Label = fmt.Sprintf("%d+", n*bucketWidthMinutes)

	for _, m := range dwellMinutes {
		idx := int(m) / bucketWidthMinutes
		if m < 0 {
			continue
		}
		if idx > n {
			idx = n
		}
		buckets[idx].Count++
	}
	return buckets
}

// RenderChart writes an HTML bar chart of the dwell distribution.
func RenderChart(w io.Writer, dwellMinutes []float64, thresholdMinutes float64, since time.Time) error {
	buckets := Histogram(dwellMinutes, thresholdMinutes)

	x := make([]string, len(buckets))
	y := make([]opts.BarData, len(buckets))
	for i, b := range buckets {
		x[i] = b.Label
		y[i] = opts.BarData{Value: b.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dwell Times", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Dwell Time Distribution",
			Subtitle: fmt.Sprintf("since %s, %d objects, threshold %gm", since.Format(time.RFC3339), len(dwellMinutes), thresholdMinutes),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "minutes"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objects"}),
	)
	bar.SetXAxis(x).
		AddSeries("dwell", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render dwell chart: %w", err)
	}
	return nil
}
