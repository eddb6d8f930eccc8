package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/pthm-cable/silodrop/config"
)

// NewSessionID returns a fresh id for one process run.
func NewSessionID() string {
	return uuid.NewString()
}

// csvTable is one append-only CSV file whose header is written with the first record.
type csvTable struct {
	name          string
	file          *os.File
	headerWritten bool
}

func openTable(dir, name string) (*csvTable, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvTable{name: name, file: f}, nil
}

// write appends records. out must be a slice of csv-tagged structs.
func (t *csvTable) write(out any) error {
	if !t.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(out, t.file); err != nil {
			return fmt.Errorf("writing %s: %w", t.name, err)
		}
		t.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(out, t.file); err != nil {
		return fmt.Errorf("writing %s: %w", t.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	sessionID string

	telemetry  *csvTable
	perf       *csvTable
	milestones *csvTable
	events     *csvTable
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir, sessionID string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, sessionID: sessionID}
	tables := []struct {
		dst  **csvTable
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.perf, "perf.csv"},
		{&om.milestones, "milestones.csv"},
		{&om.events, "events.csv"},
	}
	for _, tb := range tables {
		t, err := openTable(dir, tb.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*tb.dst = t
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes window stats records to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats []WindowStats) error {
	if om == nil || len(stats) == 0 {
		return nil
	}
	return om.telemetry.write(stats)
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	rec := stats.ToCSV(windowEnd)
	rec.SessionID = om.sessionID
	return om.perf.write([]PerfStatsCSV{rec})
}

// WriteMilestone writes a milestone record to milestones.csv.
func (om *OutputManager) WriteMilestone(e MilestoneEvent) error {
	if om == nil {
		return nil
	}
	return om.milestones.write([]MilestoneEvent{e})
}

// WriteEvent writes a control event to events.csv.
func (om *OutputManager) WriteEvent(e ControlEvent) error {
	if om == nil {
		return nil
	}
	return om.events.write([]ControlEvent{e})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Path joins name onto the output directory.
func (om *OutputManager) Path(name string) string {
	if om == nil {
		return ""
	}
	return filepath.Join(om.dir, name)
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, t := range []*csvTable{om.telemetry, om.perf, om.milestones, om.events} {
		if t == nil {
			continue
		}
		if err := t.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
