package sense

import (
	"math"
	"testing"
)

// behaviorRig wires a machine to hand-rolled snapshots, positions, and a
// counting classifier.
type behaviorRig struct {
	b         *PerceptionBehavior
	positions map[EntityID]Vec3
	classes   map[EntityID]TargetClass
	classed   map[EntityID]int
}

func newBehaviorRig(cfg BehaviorConfig) *behaviorRig {
	r := &behaviorRig{
		positions: make(map[EntityID]Vec3),
		classes:   make(map[EntityID]TargetClass),
		classed:   make(map[EntityID]int),
	}
	classify := func(id EntityID) TargetClass {
		r.classed[id]++
		return r.classes[id]
	}
	resolve := func(id EntityID) (Vec3, bool) {
		p, ok := r.positions[id]
		return p, ok
	}
	r.b = NewPerceptionBehavior(1, cfg, classify, resolve)
	return r
}

func (r *behaviorRig) place(id EntityID, class TargetClass, pos Vec3) {
	r.positions[id] = pos
	r.classes[id] = class
}

func snapshot(now float64, ids ...EntityID) *VisibilityState {
	ents := make(map[EntityID]struct{}, len(ids))
	for _, id := range ids {
		ents[id] = struct{}{}
	}
	return &VisibilityState{
		owner:      1,
		tiles:      map[TileCoordinate]float64{},
		entities:   ents,
		lastUpdate: now,
		valid:      true,
	}
}

func TestBehavior_IdleToAlertToPursuing(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	if r.b.State() != StateAlert {
		t.Fatalf("tick 1: detection inside alert distance should raise alert, got %s", r.b.State())
	}

	r.b.Update(2, 2.0, self, snapshot(2.0, 100))
	if r.b.State() != StatePursuing {
		t.Fatalf("tick 2: alert with pursuable prey should pursue, got %s", r.b.State())
	}
	if r.b.PreviousState() != StateAlert {
		t.Fatalf("previous state should be alert, got %s", r.b.PreviousState())
	}
}

func TestBehavior_OneTransitionPerTick(t *testing.T) {
	// A single tick never jumps idle -> pursuing, even when both conditions
	// hold at once.
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 5})

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100))
	if r.b.State() != StateAlert {
		t.Fatalf("expected exactly one transition to alert, got %s", r.b.State())
	}
}

func TestBehavior_DetectionOutsideAlertDistanceStaysIdle(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig()) // alert 20, detection 30
	r.place(100, ClassPrey, Vec3{X: 25})

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100))
	if r.b.DetectedCount() != 1 {
		t.Fatalf("entity at 25 should register, got %d detected", r.b.DetectedCount())
	}
	if r.b.State() != StateIdle {
		t.Fatalf("entity outside alert distance should not alert, got %s", r.b.State())
	}
}

func TestBehavior_VisibleBeyondDetectionDistanceIgnored(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 35}) // visible but past detection 30

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100))
	if r.b.DetectedCount() != 0 {
		t.Fatalf("entity beyond detection distance must not register, got %d", r.b.DetectedCount())
	}
}

func TestBehavior_PerceptionMultiplierExtendsDetection(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.PerceptionMultiplier = 1.5 // reach 45
	r := newBehaviorRig(cfg)
	r.place(100, ClassPrey, Vec3{X: 35})

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100))
	if r.b.DetectedCount() != 1 {
		t.Fatal("perception multiplier should extend detection reach")
	}
}

func TestBehavior_PursuitBreaksOnLostSight(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	r.b.Update(2, 2.0, self, snapshot(2.0, 100))
	if r.b.State() != StatePursuing {
		t.Fatalf("setup failed, expected pursuing, got %s", r.b.State())
	}

	// Target vanishes: drop to alert, never straight to investigating.
	r.b.Update(3, 3.0, self, snapshot(3.0))
	if r.b.State() != StateAlert {
		t.Fatalf("losing sight during pursuit should drop to alert, got %s", r.b.State())
	}

	// Next tick the lost-target record routes alert into investigation.
	r.b.Update(4, 4.0, self, snapshot(4.0))
	if r.b.State() != StateInvestigating {
		t.Fatalf("alert with a lost target should investigate, got %s", r.b.State())
	}
	if got := r.b.InvestigationPoint(); got != (Vec3{X: 10}) {
		t.Fatalf("investigation point should be the last known position, got %v", got)
	}
}

func TestBehavior_InvestigationTimesOutToIdle(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig()) // investigation time 5s
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	r.b.Update(2, 2.0, self, snapshot(2.0))
	r.b.Update(3, 3.0, self, snapshot(3.0))
	if r.b.State() != StateInvestigating {
		t.Fatalf("setup failed, expected investigating, got %s", r.b.State())
	}

	r.b.Update(4, 8.5, self, snapshot(8.5))
	if r.b.State() != StateIdle {
		t.Fatalf("expired investigation should return to idle, got %s", r.b.State())
	}
}

func TestBehavior_InvestigationEndsOnArrival(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	r.b.Update(2, 2.0, self, snapshot(2.0))
	r.b.Update(3, 3.0, self, snapshot(3.0))

	// The observer walked to the last known position.
	r.b.Update(4, 4.0, Vec3{X: 9}, snapshot(4.0))
	if r.b.State() != StateIdle {
		t.Fatalf("arriving at the point should end the search, got %s", r.b.State())
	}
}

func TestBehavior_InvestigatingResumesPursuitOnContact(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	r.b.Update(2, 2.0, self, snapshot(2.0))
	r.b.Update(3, 3.0, self, snapshot(3.0))
	if r.b.State() != StateInvestigating {
		t.Fatalf("setup failed, got %s", r.b.State())
	}

	r.b.Update(4, 4.0, self, snapshot(4.0, 100))
	if r.b.State() != StatePursuing {
		t.Fatalf("reacquiring prey mid-search should pursue, got %s", r.b.State())
	}
}

func TestBehavior_FleesCrediblePredator(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(200, ClassPredator, Vec3{X: 10}) // default threat 0.8
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 200))
	if r.b.State() != StateAlert {
		t.Fatalf("tick 1 should alert, got %s", r.b.State())
	}
	r.b.Update(2, 2.0, self, snapshot(2.0, 200))
	if r.b.State() != StateFleeing {
		t.Fatalf("close predator should trigger flight, got %s", r.b.State())
	}
}

func TestBehavior_FleeEndsAtSafeDistance(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.DetectionDistance = 60 // keep the predator registered past flee range
	r := newBehaviorRig(cfg)
	r.place(200, ClassPredator, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 200))
	r.b.Update(2, 2.0, self, snapshot(2.0, 200))
	if r.b.State() != StateFleeing {
		t.Fatalf("setup failed, got %s", r.b.State())
	}

	r.positions[200] = Vec3{X: 45} // past flee distance 40
	r.b.Update(3, 3.0, self, snapshot(3.0, 200))
	if r.b.State() != StateAlert {
		t.Fatalf("gaining distance should end the flight, got %s", r.b.State())
	}
}

func TestBehavior_LowThreatPredatorNotFled(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.b.SetThreatAssessor(func(EntityID, Vec3, Vec3) float64 { return 0.2 })
	r.place(200, ClassPredator, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 200))
	r.b.Update(2, 2.0, self, snapshot(2.0, 200))
	if r.b.State() != StateAlert {
		t.Fatalf("a trivial threat is not worth running from, got %s", r.b.State())
	}
}

func TestBehavior_PredatorOutranksPrey(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 5})
	r.place(200, ClassPredator, Vec3{X: 15}) // threat 0.7

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100, 200))
	target, ok := r.b.CurrentTarget()
	if !ok || target.EntityID != 200 {
		t.Fatalf("the credible predator should win selection, got %+v", target)
	}
	if math.Abs(target.ThreatLevel-0.7) > 1e-9 {
		t.Fatalf("expected threat 0.7, got %.2f", target.ThreatLevel)
	}
}

func TestBehavior_ClosestPreyWinsWithoutSeriousThreat(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 12})
	r.place(101, ClassPrey, Vec3{X: 6})
	r.place(200, ClassPredator, Vec3{X: 28}) // threat 0.44, below the bar

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100, 101, 200))
	target, ok := r.b.CurrentTarget()
	if !ok || target.EntityID != 101 {
		t.Fatalf("expected the closest prey (101), got %+v", target)
	}
}

func TestBehavior_ClassifiedOncePerDetection(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	for tick := 1; tick <= 3; tick++ {
		r.b.Update(tick, float64(tick), self, snapshot(float64(tick), 100))
	}
	if r.classed[100] != 1 {
		t.Fatalf("continuous visibility should classify once, got %d calls", r.classed[100])
	}

	// Losing and reacquiring is a fresh detection.
	r.b.Update(4, 4.0, self, snapshot(4.0))
	r.b.Update(5, 5.0, self, snapshot(5.0, 100))
	if r.classed[100] != 2 {
		t.Fatalf("re-detection should classify again, got %d calls", r.classed[100])
	}
}

func TestBehavior_InvalidSnapshotChangesNothing(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})

	r.b.Update(1, 1.0, Vec3{}, InvalidVisibilityState(1))
	if r.b.State() != StateIdle || r.b.DetectedCount() != 0 {
		t.Fatal("an invalid snapshot means unknown, not empty")
	}

	r.b.Update(2, 2.0, Vec3{}, nil)
	if r.b.State() != StateIdle {
		t.Fatal("a nil snapshot must be ignored")
	}
}

func TestBehavior_StaleSnapshotIgnored(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(2.0, 100))
	if r.b.State() != StateAlert {
		t.Fatalf("setup failed, got %s", r.b.State())
	}

	// A snapshot older than the last consumed one must not regress state.
	r.b.Update(2, 2.0, self, snapshot(1.0))
	if r.b.State() != StateAlert || r.b.DetectedCount() != 1 {
		t.Fatal("stale snapshot must not roll detections back")
	}
}

func TestBehavior_PanickingCallbacksAreHarmless(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(100, ClassPrey, Vec3{X: 10})
	r.b.SetCallbacks(BehaviorCallbacks{
		OnStateChanged:   func(_, _ PerceptionState) { panic("listener bug") },
		OnTargetDetected: func(EntityID) { panic("listener bug") },
		OnTargetLost:     func(EntityID) { panic("listener bug") },
	})

	r.b.Update(1, 1.0, Vec3{}, snapshot(1.0, 100))
	if r.b.State() != StateAlert {
		t.Fatalf("panicking callbacks must not affect transitions, got %s", r.b.State())
	}
	r.b.Update(2, 2.0, Vec3{}, snapshot(2.0))
	if r.b.DetectedCount() != 0 {
		t.Fatal("loss handling should survive a panicking callback")
	}
}

func TestBehavior_HidingExitsWhenClear(t *testing.T) {
	r := newBehaviorRig(DefaultBehaviorConfig())
	r.place(200, ClassPredator, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 200))
	r.b.EnterHiding(1, 1.0)
	if r.b.State() != StateHiding {
		t.Fatalf("setup failed, got %s", r.b.State())
	}

	// Threat still visible: stay put.
	r.b.Update(2, 2.0, self, snapshot(2.0, 200))
	if r.b.State() != StateHiding {
		t.Fatalf("hiding should hold while the threat is tracked, got %s", r.b.State())
	}

	// Threat gone: come out cautious.
	r.b.Update(3, 3.0, self, snapshot(3.0))
	if r.b.State() != StateAlert {
		t.Fatalf("clear coast should exit hiding into alert, got %s", r.b.State())
	}
}

func TestBehavior_AlertTimesOutToIdle(t *testing.T) {
	cfg := DefaultBehaviorConfig()
	cfg.CanInvestigate = false // no lost-target detour
	r := newBehaviorRig(cfg)
	r.place(100, ClassPrey, Vec3{X: 10})
	self := Vec3{}

	r.b.Update(1, 1.0, self, snapshot(1.0, 100))
	if r.b.State() != StateAlert {
		t.Fatalf("setup failed, got %s", r.b.State())
	}

	r.b.Update(2, 2.0, self, snapshot(2.0))
	if r.b.State() != StateAlert {
		t.Fatalf("alert should persist below the timeout, got %s", r.b.State())
	}
	r.b.Update(3, 4.5, self, snapshot(4.5)) // 3.5s since entering alert
	if r.b.State() != StateIdle {
		t.Fatalf("empty alert past the timeout should settle to idle, got %s", r.b.State())
	}
}
