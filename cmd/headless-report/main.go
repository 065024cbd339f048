package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Garsondee/Sentry-Sense/internal/sense"
	"gonum.org/v1/gonum/stat"
)

type runStats struct {
	runIndex int
	seed     int64

	firstDetectionTick int
	firstPursuitTick   int
	firstLossTick      int

	detections   int
	losses       int
	stateChanges int
	discarded    uint64

	finalStates map[string]string
}

func main() {
	var runs int
	var ticks int
	var seedBase int64
	var seedStep int64
	var scenarioPath string
	var csvPath string
	var verbose bool

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&ticks, "ticks", 0, "ticks per run (0 = scenario default)")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML path (empty = builtin watchtower)")
	flag.StringVar(&csvPath, "csv", "", "write per-tick observer telemetry to this CSV file")
	flag.BoolVar(&verbose, "verbose", false, "record verbose simulation log entries")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}

	sc := sense.DefaultScenario()
	if scenarioPath != "" {
		loaded, err := sense.LoadScenario(scenarioPath)
		if err != nil {
			fmt.Printf("error: load scenario: %v\n", err)
			os.Exit(1)
		}
		sc = loaded
	}
	if ticks <= 0 {
		ticks = sc.Ticks
	}

	var telemetry *sense.TelemetryWriter
	if csvPath != "" {
		telemetry = sense.NewTelemetryWriter(csvPath)
	}

	fmt.Printf("=== Headless Perception Report ===\n")
	fmt.Printf("scenario=%s runs=%d ticks=%d seed_base=%d seed_step=%d\n\n",
		sc.Name, runs, ticks, seedBase, seedStep)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		stats, err := runScenario(sc, i+1, seed, ticks, verbose, telemetry)
		if err != nil {
			fmt.Printf("error: run %d: %v\n", i+1, err)
			os.Exit(1)
		}
		all = append(all, stats)
		printRun(stats)
	}

	printAggregate(all)

	if telemetry != nil {
		if err := telemetry.Close(); err != nil {
			fmt.Printf("error: write csv: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("telemetry: %d rows -> %s\n", telemetry.Rows(), csvPath)
	}
}

func runScenario(sc sense.Scenario, runIndex int, seed int64, ticks int, verbose bool, telemetry *sense.TelemetryWriter) (runStats, error) {
	sim, err := sense.NewSenseSimFromScenario(sc, seed, verbose)
	if err != nil {
		return runStats{}, err
	}
	sim.Telemetry = telemetry
	sim.Run(ticks)

	entries := sim.Log.Entries()
	finalStates := make(map[string]string, len(sim.Observers))
	for _, o := range sim.Observers {
		finalStates[o.Label] = o.Behavior.State().String()
	}

	return runStats{
		runIndex:           runIndex,
		seed:               seed,
		firstDetectionTick: firstTick(entries, "target", "detected"),
		firstPursuitTick:   firstTickContaining(entries, "behavior", "state_change", "pursuing"),
		firstLossTick:      firstTick(entries, "target", "lost"),
		detections:         sim.Log.CountCategory("target", "detected"),
		losses:             sim.Log.CountCategory("target", "lost"),
		stateChanges:       sim.Log.CountCategory("behavior", "state_change"),
		discarded:          sim.Scheduler.Discarded(),
		finalStates:        finalStates,
	}, nil
}

// firstTick returns the tick of the first entry matching category and key,
// or -1 if none matched.
func firstTick(entries []sense.SimLogEntry, category, key string) int {
	return firstTickContaining(entries, category, key, "")
}

func firstTickContaining(entries []sense.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

func printRun(rs runStats) {
	fmt.Printf("--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Printf("phase_markers: first_detection=%d first_pursuit=%d first_loss=%d\n",
		rs.firstDetectionTick, rs.firstPursuitTick, rs.firstLossTick)
	fmt.Printf("event_totals: detections=%d losses=%d state_changes=%d queries_discarded=%d\n",
		rs.detections, rs.losses, rs.stateChanges, rs.discarded)
	fmt.Printf("final_states: %s\n\n", formatFinalStates(rs.finalStates))
}

func formatFinalStates(states map[string]string) string {
	labels := make([]string, 0, len(states))
	for k := range states {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l+"="+states[l])
	}
	return strings.Join(parts, " ")
}

func printAggregate(all []runStats) {
	detectionTicks := collectTicks(all, func(rs runStats) int { return rs.firstDetectionTick })
	pursuitTicks := collectTicks(all, func(rs runStats) int { return rs.firstPursuitTick })
	stateChangeCounts := make([]float64, 0, len(all))
	totalDetections := 0
	totalLosses := 0
	for _, rs := range all {
		stateChangeCounts = append(stateChangeCounts, float64(rs.stateChanges))
		totalDetections += rs.detections
		totalLosses += rs.losses
	}

	fmt.Println("=== Aggregate ===")
	fmt.Printf("runs=%d\n", len(all))
	fmt.Printf("avg_events_per_run: detections=%.1f losses=%.1f\n",
		avg(totalDetections, len(all)), avg(totalLosses, len(all)))
	printTickStats("first_detection_tick", detectionTicks)
	printTickStats("first_pursuit_tick", pursuitTicks)
	printTickStats("state_changes", stateChangeCounts)
}

// collectTicks keeps only runs where the marker fired.
func collectTicks(all []runStats, pick func(runStats) int) []float64 {
	out := make([]float64, 0, len(all))
	for _, rs := range all {
		if t := pick(rs); t >= 0 {
			out = append(out, float64(t))
		}
	}
	return out
}

func printTickStats(name string, vals []float64) {
	if len(vals) == 0 {
		fmt.Printf("%s: (never fired)\n", name)
		return
	}
	sort.Float64s(vals)
	mean := stat.Mean(vals, nil)
	sd := stat.StdDev(vals, nil)
	median := stat.Quantile(0.5, stat.Empirical, vals, nil)
	fmt.Printf("%s: n=%d mean=%.1f stddev=%.1f median=%.1f min=%.0f max=%.0f\n",
		name, len(vals), mean, sd, median, vals[0], vals[len(vals)-1])
}

func avg(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}
