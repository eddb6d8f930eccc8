package telemetry

import (
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds one unit's state at the end of a stats window.
type WindowStats struct {
	SessionID       string  `csv:"session"`
	RunID           int64   `csv:"run"`
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Mode            string  `csv:"mode"`
	FlowSpeed       float64 `csv:"flow_speed"`

	Unit     int    `csv:"unit"`
	UnitName string `csv:"unit_name"`

	// Progress at window end
	Total         int     `csv:"total"`
	FillRatio     float64 `csv:"fill_ratio"`
	DischargedPct float64 `csv:"discharged_pct"`
	Target        float64 `csv:"target"`

	// Phase occupancy at window end
	AtRest     int `csv:"at_rest"`
	SiloFlow   int `csv:"silo_flow"`
	FreeFall   int `csv:"free_fall"`
	OnBelt     int `csv:"on_belt"`
	Falling    int `csv:"falling"`
	Captured   int `csv:"captured"`
	Retired    int `csv:"retired"`
	Captures   int `csv:"captures"`   // captured during the window
	Milestones int `csv:"milestones"` // milestones fired during the window

	// Lot blend in the container, one entry per layer
	Lots       []int  `csv:"-"`
	LotsCount  string `csv:"lots_captured"` // e.g. "120;80;41"
	LotsShare  string `csv:"lots_share"`    // share of captured, e.g. "0.498;0.332;0.170"
	LeadingLot int    `csv:"leading_lot"`   // layer with most captured, -1 when empty

	// Shared container bed
	BedMean     float64 `csv:"bed_mean"`
	BedStdDev   float64 `csv:"bed_std"`
	BedP90      float64 `csv:"bed_p90"`
	BedMax      float64 `csv:"bed_max"`
	BedCoverage float64 `csv:"bed_coverage"`
}

// SetLots records the captured lot blend and its string columns.
func (s *WindowStats) SetLots(lots []int) {
	s.Lots = slices.Clone(lots)
	s.LeadingLot = -1

	total := 0
	for _, n := range lots {
		total += n
	}
	counts := make([]string, len(lots))
	shares := make([]string, len(lots))
	for i, n := range lots {
		counts[i] = strconv.Itoa(n)
		share := 0.0
		if total > 0 {
			share = float64(n) / float64(total)
		}
		shares[i] = strconv.FormatFloat(share, 'f', 3, 64)
		if n > 0 && (s.LeadingLot < 0 || n > lots[s.LeadingLot]) {
			s.LeadingLot = i
		}
	}
	s.LotsCount = strings.Join(counts, ";")
	s.LotsShare = strings.Join(shares, ";")
}

// SetBed copies the bed summary into the row.
func (s *WindowStats) SetBed(b BedStats) {
	s.BedMean = b.Mean
	s.BedStdDev = b.StdDev
	s.BedP90 = b.P90
	s.BedMax = b.Max
	s.BedCoverage = b.Coverage
}

// BedStats summarises the container height field.
type BedStats struct {
	Mean     float64
	StdDev   float64
	P50      float64
	P90      float64
	Max      float64
	Volume   float64 // sum of column heights
	Coverage float64 // share of cells with any material
}

// ComputeBedStats summarises a height field.
func ComputeBedStats(heights []float32) BedStats {
	n := len(heights)
	if n == 0 {
		return BedStats{}
	}

	values := make([]float64, n)
	covered := 0
	for i, h := range heights {
		values[i] = float64(h)
		if h > 0 {
			covered++
		}
	}

	mean, std := stat.MeanStdDev(values, nil)
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return BedStats{
		Mean:     mean,
		StdDev:   std,
		P50:      stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:      stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:      floats.Max(values),
		Volume:   floats.Sum(values),
		Coverage: float64(covered) / float64(n),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (b BedStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mean", b.Mean),
		slog.Float64("std", b.StdDev),
		slog.Float64("p90", b.P90),
		slog.Float64("max", b.Max),
		slog.Float64("coverage", b.Coverage),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"run", s.RunID,
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"unit", s.UnitName,
		"fill_ratio", s.FillRatio,
		"discharged_pct", s.DischargedPct,
		"target", s.Target,
		"on_belt", s.OnBelt,
		"captures", s.Captures,
		"lots_captured", s.LotsCount,
		"bed_max", s.BedMax,
		"bed_coverage", s.BedCoverage,
	)
}
