package sense

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTelemetryWriter_NilIsSafe(t *testing.T) {
	w := NewTelemetryWriter("")
	if w != nil {
		t.Fatal("empty path should disable telemetry")
	}
	w.Record(TickTelemetry{Tick: 1})
	if w.Rows() != 0 {
		t.Fatal("nil writer should drop rows")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing a nil writer should be a no-op, got %v", err)
	}
}

func TestTelemetryWriter_BuffersAndWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	w := NewTelemetryWriter(path)

	w.Record(TickTelemetry{Tick: 0, Observer: 1, State: "idle", VisibleTiles: 12})
	w.Record(TickTelemetry{Tick: 1, Observer: 1, State: "alert", VisibleTiles: 12, TargetID: 50})
	if w.Rows() != 2 {
		t.Fatalf("expected 2 buffered rows, got %d", w.Rows())
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "tick") || !strings.Contains(out, "effective_range") {
		t.Fatalf("missing header in:\n%s", out)
	}
	if !strings.Contains(out, "alert") {
		t.Fatalf("missing row data in:\n%s", out)
	}
}

func TestSnapshotTelemetry_ValidState(t *testing.T) {
	obs := &SimObserver{
		ID:      1,
		Pos:     Vec3{},
		Profile: omniProfile(50),
	}
	obs.Behavior = NewPerceptionBehavior(1, DefaultBehaviorConfig(),
		func(EntityID) TargetClass { return ClassPrey },
		func(EntityID) (Vec3, bool) { return Vec3{X: 10}, true })

	vs := &VisibilityState{
		owner:      1,
		tiles:      map[TileCoordinate]float64{{X: 1}: 0.9, {X: 2}: 0.5},
		entities:   map[EntityID]struct{}{50: {}},
		lastUpdate: 1.0,
		valid:      true,
	}
	obs.Behavior.Update(1, 1.0, obs.Pos, vs)

	row := snapshotTelemetry(1, obs, ClearDay, vs)
	if row.Tick != 1 || row.Observer != 1 {
		t.Fatalf("identity fields wrong: %+v", row)
	}
	if row.VisibleTiles != 2 || row.VisibleEntities != 1 {
		t.Fatalf("visibility counts wrong: %+v", row)
	}
	if row.EffectiveRange != 50 {
		t.Fatalf("clear-day effective range should equal base, got %v", row.EffectiveRange)
	}
	if row.TargetID != 50 || row.TargetClass != "prey" {
		t.Fatalf("target fields wrong: %+v", row)
	}
	if row.State != "alert" {
		t.Fatalf("expected alert after a close detection, got %q", row.State)
	}
}

func TestSnapshotTelemetry_InvalidStateSkipsCounts(t *testing.T) {
	obs := &SimObserver{ID: 2, Profile: omniProfile(50)}
	obs.Behavior = NewPerceptionBehavior(2, DefaultBehaviorConfig(), nil, nil)

	row := snapshotTelemetry(3, obs, ClearDay, InvalidVisibilityState(2))
	if row.VisibleTiles != 0 || row.VisibleEntities != 0 {
		t.Fatalf("invalid state must not report counts: %+v", row)
	}
	if row.State != "idle" || row.TargetID != 0 {
		t.Fatalf("unexpected defaults: %+v", row)
	}
}
