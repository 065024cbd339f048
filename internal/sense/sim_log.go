package sense

import (
	"fmt"
	"sync"
)

// SimLogEntry is one recorded event during a simulation run.
type SimLogEntry struct {
	Tick     int
	Observer string  // label e.g. "G1", "P3", or "--" for global events
	Category string  // vision, behavior, target, batch
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=042] G1   behavior  state_change     idle → alert
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Observer, e.Category, e.Key, e.Value)
}

// SimLog collects structured events during a run. It is unbounded and
// machine-readable; tests and the report command query it rather than
// scraping stdout. Per-tick noise (superseded batch results, per-tile
// detail) is recorded only in verbose mode.
type SimLog struct {
	mu      sync.Mutex
	entries []SimLogEntry
	verbose bool
}

// NewSimLog creates a SimLog. If verbose is true, diagnostic-verbosity
// entries are also recorded.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// Add records a new entry. Safe on a nil log (events are simply dropped).
func (sl *SimLog) Add(tick int, observer, category, key, value string, numVal float64) {
	if sl == nil {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.entries = append(sl.entries, SimLogEntry{
		Tick:     tick,
		Observer: observer,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, observer, category, key, value string, numVal float64) {
	if sl == nil || !sl.verbose {
		return
	}
	sl.Add(tick, observer, category, key, value, numVal)
}

// Entries returns a copy of all recorded entries. The log is appended to
// from scheduler workers, so callers get a stable snapshot.
func (sl *SimLog) Entries() []SimLogEntry {
	if sl == nil {
		return nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	out := make([]SimLogEntry, len(sl.entries))
	copy(out, sl.entries)
	return out
}

// Filter returns entries matching the given category and/or key.
// Pass empty string to match any value for that field.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	if sl == nil {
		return nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	var out []SimLogEntry
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterObserver returns entries for a specific observer label.
func (sl *SimLog) FilterObserver(label string) []SimLogEntry {
	if sl == nil {
		return nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Observer == label {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	return len(sl.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false if none.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[len(entries)-1], true
}

// FirstOf returns the earliest entry matching category+key, or false if none.
func (sl *SimLog) FirstOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[0], true
}
