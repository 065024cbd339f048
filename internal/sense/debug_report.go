package sense

import (
	"fmt"
	"sort"
	"strings"
)

// observerDebugReport builds a pasteable text summary of one observer's
// recent perception history, for bug reports from interactive sessions.
func (g *Game) observerDebugReport(obs *SimObserver, lastTicks int) string {
	if obs == nil {
		return "(no observer selected)"
	}
	if lastTicks <= 0 {
		lastTicks = 200
	}

	sim := g.sim
	toTick := sim.Tick
	fromTick := toTick - lastTicks + 1
	if fromTick < 0 {
		fromTick = 0
	}

	vs := sim.Scheduler.State(obs.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "--- SentrySense debug report ---\n")
	fmt.Fprintf(&b, "tick_range=[%d..%d] observer=%s\n", fromTick, toTick, obs.Label)
	fmt.Fprintf(&b, "state=%s prev=%s detected=%d\n",
		obs.Behavior.State(), obs.Behavior.PreviousState(), obs.Behavior.DetectedCount())
	fmt.Fprintf(&b, "env: time=%.2f light=%.2f weather=%.2f range=%.1f/%.1f\n",
		sim.Env.TimeOfDay, sim.Env.LightLevel(), sim.Env.WeatherAttenuation(),
		EffectiveRange(obs.Profile, sim.Env), obs.Profile.BaseRangeMeters)
	if vs.Valid() {
		fmt.Fprintf(&b, "visibility: tiles=%d entities=%v updated=%.1fs\n",
			vs.VisibleTileCount(), vs.VisibleEntities(), vs.LastUpdateTime())
	} else {
		b.WriteString("visibility: (no valid snapshot)\n")
	}
	if t, ok := obs.Behavior.CurrentTarget(); ok {
		fmt.Fprintf(&b, "target: id=%d class=%s threat=%.2f last_seen=%.1fs at (%.1f,%.1f)\n",
			t.EntityID, t.Class, t.ThreatLevel, t.LastSeenTime,
			t.LastKnownPosition.X, t.LastKnownPosition.Y)
	}
	fmt.Fprintf(&b, "scheduler: discarded=%d\n\n", sim.Scheduler.Discarded())

	// Behavior label is what the machine logs under, not the display label.
	logLabel := fmt.Sprintf("E%d", obs.ID)
	entries := sim.Log.FilterObserver(logLabel)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Tick < entries[j].Tick })

	b.WriteString("events:\n")
	count := 0
	for _, e := range entries {
		if e.Tick < fromTick || e.Tick > toTick {
			continue
		}
		b.WriteString("  ")
		b.WriteString(e.String())
		b.WriteByte('\n')
		count++
	}
	if count == 0 {
		b.WriteString("  (none in range)\n")
	}
	return b.String()
}
