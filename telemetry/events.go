// Package telemetry provides fill tracking, milestone events, window stats and run output.
package telemetry

import "log/slog"

// EventType identifies telemetry events.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventMilestone EventType = "milestone"
	EventAutoStop  EventType = "auto_stop"
	EventReset     EventType = "reset"
)

// MilestoneEvent records a unit crossing a discharge threshold.
type MilestoneEvent struct {
	SessionID string    `csv:"session"`
	Type      EventType `csv:"type"`
	RunID     int64     `csv:"run"`
	Tick      int32     `csv:"tick"`
	SimTime   float64   `csv:"sim_time"`
	Unit      int       `csv:"unit"`
	UnitName  string    `csv:"unit_name"`
	Index     int       `csv:"index"`
	Threshold float64   `csv:"threshold_pct"`
	Percent   float64   `csv:"discharged_pct"`
	FillRatio float64   `csv:"fill_ratio"`
}

// Log logs the event using slog.
func (e MilestoneEvent) Log() {
	slog.Info("milestone",
		"run", e.RunID,
		"tick", e.Tick,
		"unit", e.UnitName,
		"index", e.Index,
		"threshold_pct", e.Threshold,
		"discharged_pct", e.Percent,
	)
}

// ControlEvent records a run-level transition (start, stop, reset).
type ControlEvent struct {
	SessionID string    `csv:"session"`
	Type      EventType `csv:"type"`
	RunID     int64     `csv:"run"`
	Tick      int32     `csv:"tick"`
	SimTime   float64   `csv:"sim_time"`
	Mode      string    `csv:"experience"`
	FlowSpeed float64   `csv:"flow_speed"`
}

// Log logs the event using slog.
func (e ControlEvent) Log() {
	slog.Info(string(e.Type),
		"run", e.RunID,
		"tick", e.Tick,
		"experience", e.Mode,
		"flow_speed", e.FlowSpeed,
	)
}
