package sense

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// TickTelemetry is one per-observer, per-tick CSV row.
type TickTelemetry struct {
	Tick            int     `csv:"tick"`
	Observer        uint32  `csv:"observer"`
	State           string  `csv:"state"`
	VisibleTiles    int     `csv:"visible_tiles"`
	VisibleEntities int     `csv:"visible_entities"`
	EffectiveRange  float64 `csv:"effective_range"`
	TargetID        uint32  `csv:"target_id"`
	TargetClass     string  `csv:"target_class"`
	ThreatLevel     float64 `csv:"threat_level"`
}

// TelemetryWriter buffers telemetry rows and writes them as one CSV file
// on Close. Rows for a full run are small enough that buffering beats
// incremental writes with header bookkeeping.
type TelemetryWriter struct {
	path string
	rows []*TickTelemetry
}

// NewTelemetryWriter returns nil when path is empty (telemetry disabled);
// callers may use a nil writer freely.
func NewTelemetryWriter(path string) *TelemetryWriter {
	if path == "" {
		return nil
	}
	return &TelemetryWriter{path: path}
}

// Record appends one row.
func (w *TelemetryWriter) Record(row TickTelemetry) {
	if w == nil {
		return
	}
	r := row
	w.rows = append(w.rows, &r)
}

// Rows returns the buffered rows.
func (w *TelemetryWriter) Rows() int {
	if w == nil {
		return 0
	}
	return len(w.rows)
}

// Close writes the CSV file.
func (w *TelemetryWriter) Close() error {
	if w == nil {
		return nil
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating telemetry file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&w.rows, f); err != nil {
		return fmt.Errorf("writing telemetry csv: %w", err)
	}
	return nil
}

// snapshotTelemetry builds a row from the current observer state.
func snapshotTelemetry(tick int, obs *SimObserver, env EnvironmentalConditions, vs *VisibilityState) TickTelemetry {
	row := TickTelemetry{
		Tick:           tick,
		Observer:       uint32(obs.ID),
		State:          obs.Behavior.State().String(),
		EffectiveRange: EffectiveRange(obs.Profile, env),
	}
	if vs.Valid() {
		row.VisibleTiles = vs.VisibleTileCount()
		row.VisibleEntities = vs.VisibleEntityCount()
	}
	if target, ok := obs.Behavior.CurrentTarget(); ok {
		row.TargetID = uint32(target.EntityID)
		row.TargetClass = target.Class.String()
		row.ThreatLevel = target.ThreatLevel
	}
	return row
}
