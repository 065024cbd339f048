package sense

import (
	"context"
	"fmt"
	"math/rand"
)

// SenseSim is a headless simulation harness driving the scheduler and the
// behavior layer tick by tick. It backs the package tests, the headless
// report command, and the interactive viewer; it has no rendering
// dependency of its own.
type SenseSim struct {
	World     *GridWorld
	Env       EnvironmentalConditions
	Scheduler *BatchQueryScheduler
	Observers []*SimObserver
	Log       *SimLog
	Telemetry *TelemetryWriter

	Tick        int
	TickSeconds float64

	mapW, mapH int
	rng        *rand.Rand
	classes    map[EntityID]TargetClass
	wanderers  []EntityID
}

// SimObserver is one perceiving agent in the harness.
type SimObserver struct {
	ID       EntityID
	Label    string
	Pos      Vec3
	Profile  VisionProfile
	Behavior *PerceptionBehavior
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra    simOptionKind = iota // map, environment, seed, verbose — applied first
	simOptObserver                      // add observers — applied once the world exists
	simOptEntity                        // place entities
)

// SimOption is a builder function applied to a SenseSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*SenseSim) error
}

// WithMapRows loads the z=0 plane from ASCII rows using the standard legend.
func WithMapRows(rows ...string) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.mapH = len(rows)
		for _, r := range rows {
			if len(r) > s.mapW {
				s.mapW = len(r)
			}
		}
		return s.World.LoadASCIIMap(rows, nil)
	}}
}

// WithLegendMapRows loads ASCII rows with a custom legend.
func WithLegendMapRows(legend map[rune]OcclusionProperties, rows ...string) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.mapH = len(rows)
		for _, r := range rows {
			if len(r) > s.mapW {
				s.mapW = len(r)
			}
		}
		return s.World.LoadASCIIMap(rows, legend)
	}}
}

// WithEnvironment sets the starting conditions (default: clear day).
func WithEnvironment(env EnvironmentalConditions) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.Env = env
		return nil
	}}
}

// WithSeed sets the RNG seed for wandering entities.
func WithSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.rng = rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation harness
		return nil
	}}
}

// WithVerbose enables diagnostic-verbosity logging.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.Log = NewSimLog(v)
		return nil
	}}
}

// WithTickSeconds sets the simulated duration of one tick.
func WithTickSeconds(d float64) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.TickSeconds = d
		return nil
	}}
}

// WithTelemetry buffers per-tick CSV rows for every observer.
func WithTelemetry(w *TelemetryWriter) SimOption {
	return SimOption{simOptInfra, func(s *SenseSim) error {
		s.Telemetry = w
		return nil
	}}
}

// WithObserver adds a perceiving agent at a tile position.
func WithObserver(id EntityID, x, y, z int, profile VisionProfile, cfg BehaviorConfig) SimOption {
	return SimOption{simOptObserver, func(s *SenseSim) error {
		return s.addObserver(id, "", x, y, z, profile, cfg)
	}}
}

// WithLabeledObserver is WithObserver with a log label.
func WithLabeledObserver(id EntityID, label string, x, y, z int, profile VisionProfile, cfg BehaviorConfig) SimOption {
	return SimOption{simOptObserver, func(s *SenseSim) error {
		return s.addObserver(id, label, x, y, z, profile, cfg)
	}}
}

// WithEntity places a passive entity with a classification.
func WithEntity(id EntityID, x, y, z int, class TargetClass) SimOption {
	return SimOption{simOptEntity, func(s *SenseSim) error {
		s.World.PlaceEntity(id, Vec3{X: float64(x), Y: float64(y), Z: float64(z)})
		s.classes[id] = class
		return nil
	}}
}

// WithWanderingEntity places an entity that walks to a random open
// neighbor each tick (seeded via WithSeed).
func WithWanderingEntity(id EntityID, x, y, z int, class TargetClass) SimOption {
	return SimOption{simOptEntity, func(s *SenseSim) error {
		s.World.PlaceEntity(id, Vec3{X: float64(x), Y: float64(y), Z: float64(z)})
		s.classes[id] = class
		s.wanderers = append(s.wanderers, id)
		return nil
	}}
}

// NewSenseSim constructs a harness from options applied in three ordered
// passes: infrastructure, then observers, then entities.
func NewSenseSim(opts ...SimOption) (*SenseSim, error) {
	s := &SenseSim{
		World:       NewGridWorld(),
		Env:         ClearDay,
		TickSeconds: 0.1,
		rng:         rand.New(rand.NewSource(1)), // #nosec G404 -- simulation harness
		classes:     make(map[EntityID]TargetClass),
	}

	for _, pass := range []simOptionKind{simOptInfra, simOptObserver, simOptEntity} {
		for _, opt := range opts {
			if opt.kind != pass {
				continue
			}
			if err := opt.fn(s); err != nil {
				return nil, err
			}
		}
	}

	if s.Log == nil {
		s.Log = NewSimLog(false)
	}
	s.Scheduler = NewBatchQueryScheduler(s.World, 0, s.Log)
	return s, nil
}

// NewSenseSimFromScenario builds a harness from a loaded scenario.
func NewSenseSimFromScenario(sc Scenario, seed int64, verbose bool) (*SenseSim, error) {
	legend, err := sc.legendFor()
	if err != nil {
		return nil, err
	}

	opts := []SimOption{
		WithLegendMapRows(legend, sc.Map.Rows...),
		WithEnvironment(sc.EnvironmentConditions()),
		WithSeed(seed),
		WithVerbose(verbose),
		WithTickSeconds(sc.TickSeconds),
	}
	for _, o := range sc.Observers {
		o := o
		opts = append(opts, SimOption{simOptObserver, func(s *SenseSim) error {
			return s.addObserver(EntityID(o.ID), o.Label, o.X, o.Y, o.Z, profileFromObserver(o), behaviorFromYAML(o.Behavior))
		}})
	}
	for _, e := range sc.Entities {
		if e.Wander {
			opts = append(opts, WithWanderingEntity(EntityID(e.ID), e.X, e.Y, e.Z, classFromName(e.Class)))
		} else {
			opts = append(opts, WithEntity(EntityID(e.ID), e.X, e.Y, e.Z, classFromName(e.Class)))
		}
	}
	return NewSenseSim(opts...)
}

func (s *SenseSim) addObserver(id EntityID, label string, x, y, z int, profile VisionProfile, cfg BehaviorConfig) error {
	for _, o := range s.Observers {
		if o.ID == id {
			return fmt.Errorf("duplicate observer id %d", id)
		}
	}
	if label == "" {
		label = fmt.Sprintf("E%d", id)
	}

	pos := Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
	s.World.PlaceEntity(id, pos)

	behavior := NewPerceptionBehavior(id, cfg, s.classifierFor(), s.World.EntityPosition)
	obs := &SimObserver{
		ID:       id,
		Label:    label,
		Pos:      pos,
		Profile:  NewVisionProfile(profile),
		Behavior: behavior,
	}
	s.Observers = append(s.Observers, obs)
	return nil
}

// classifierFor returns the injected classification strategy: the harness
// keeps a class table that tests may rewrite mid-run.
func (s *SenseSim) classifierFor() Classifier {
	return func(id EntityID) TargetClass {
		if c, ok := s.classes[id]; ok {
			return c
		}
		return ClassNeutral
	}
}

// Observer returns the observer with the given id.
func (s *SenseSim) Observer(id EntityID) *SimObserver {
	for _, o := range s.Observers {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// SetEntityClass rewrites how future detections classify an entity.
func (s *SenseSim) SetEntityClass(id EntityID, class TargetClass) {
	s.classes[id] = class
}

// MoveEntity teleports an entity (or an observer) to a tile.
func (s *SenseSim) MoveEntity(id EntityID, x, y, z int) {
	pos := Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
	s.World.PlaceEntity(id, pos)
	if o := s.Observer(id); o != nil {
		o.Pos = pos
	}
}

// RemoveEntity drops an entity from the world entirely.
func (s *SenseSim) RemoveEntity(id EntityID) {
	s.World.RemoveEntity(id)
}

// Now is the simulated time at the current tick.
func (s *SenseSim) Now() float64 {
	return float64(s.Tick) * s.TickSeconds
}

// Step runs one tick: batch all observer FOV queries, feed each behavior
// machine the fresh snapshot, record telemetry, then move wanderers.
func (s *SenseSim) Step() {
	now := s.Now()

	reqs := make([]QueryRequest, 0, len(s.Observers))
	for _, o := range s.Observers {
		reqs = append(reqs, QueryRequest{
			Observer: o.ID,
			Origin:   TileOf(o.Pos),
			Profile:  o.Profile,
			Env:      s.Env,
			Now:      now,
		})
	}
	s.Scheduler.RunBatch(context.Background(), s.Tick, reqs)

	for _, o := range s.Observers {
		o.Behavior.AttachLog(s.Log)
		vs := s.Scheduler.State(o.ID)
		o.Behavior.Update(s.Tick, now, o.Pos, vs)
		if s.Telemetry != nil {
			s.Telemetry.Record(snapshotTelemetry(s.Tick, o, s.Env, vs))
		}
	}

	s.moveWanderers()
	s.Tick++
}

// Run advances n ticks.
func (s *SenseSim) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// moveWanderers walks each wandering entity to a random open 4-neighbor,
// staying inside the loaded map.
func (s *SenseSim) moveWanderers() {
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for _, id := range s.wanderers {
		pos, ok := s.World.EntityPosition(id)
		if !ok {
			continue
		}
		d := dirs[s.rng.Intn(len(dirs))]
		next := TileCoordinate{X: int(pos.X) + d[0], Y: int(pos.Y) + d[1], Z: int(pos.Z)}
		if next.X < 0 || next.Y < 0 || (s.mapW > 0 && next.X >= s.mapW) || (s.mapH > 0 && next.Y >= s.mapH) {
			continue
		}
		if occ, found := s.World.Occlusion(next); found && occ.BlocksSight {
			continue
		}
		s.World.PlaceEntity(id, Vec3{X: float64(next.X), Y: float64(next.Y), Z: float64(next.Z)})
	}
}
