package sense

import (
	"fmt"
	"math"
	"sort"
)

// PerceptionState is the behavior layer's reactive state. Idle is initial;
// there is no terminal state.
type PerceptionState int

const (
	StateIdle PerceptionState = iota
	StateAlert
	StatePursuing
	StateFleeing
	StateInvestigating
	StateHiding
)

func (s PerceptionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAlert:
		return "alert"
	case StatePursuing:
		return "pursuing"
	case StateFleeing:
		return "fleeing"
	case StateInvestigating:
		return "investigating"
	case StateHiding:
		return "hiding"
	default:
		return "unknown"
	}
}

// TargetClass is how a detected entity relates to the observer.
type TargetClass int

const (
	ClassNone TargetClass = iota
	ClassPrey
	ClassPredator
	ClassNeutral
	ClassAlly
)

func (c TargetClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassPrey:
		return "prey"
	case ClassPredator:
		return "predator"
	case ClassNeutral:
		return "neutral"
	case ClassAlly:
		return "ally"
	default:
		return "unknown"
	}
}

// TargetRecord tracks one entity of interest, refreshed only from a
// current valid VisibilityState.
type TargetRecord struct {
	EntityID          EntityID
	Class             TargetClass
	LastKnownPosition Vec3
	LastSeenTime      float64
	ThreatLevel       float64 // [0,1]
}

// BehaviorConfig tunes the perception state machine.
type BehaviorConfig struct {
	DetectionDistance float64 // max distance at which a visible entity registers
	AlertDistance     float64 // detection inside this raises Idle to Alert
	PursuitDistance   float64 // pursuit breaks off beyond this
	FleeDistance      float64 // fleeing stops once the threat is this far

	InvestigationTime float64 // seconds spent at a last-known position
	AlertTimeout      float64 // seconds of empty Alert before Idle

	CanPursue      bool
	CanFlee        bool
	CanInvestigate bool

	PerceptionMultiplier float64 // skill modifier on detection distance
}

// DefaultBehaviorConfig mirrors a generic wary NPC.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		DetectionDistance:    30,
		AlertDistance:        20,
		PursuitDistance:      50,
		FleeDistance:         40,
		InvestigationTime:    5,
		AlertTimeout:         3,
		CanPursue:            true,
		CanFlee:              true,
		CanInvestigate:       true,
		PerceptionMultiplier: 1,
	}
}

// Reaching this close to the investigation point ends the search early.
const investigationArriveDistance = 2.0

// A predator below this threat level is not worth running from.
const fleeThreatFloor = 0.3

// Classifier decides what a newly-detected entity is to this observer.
// It is injected at construction — classification policy lives in the
// gameplay layer, not here.
type Classifier func(EntityID) TargetClass

// PositionResolver looks up an entity's current position.
type PositionResolver func(EntityID) (Vec3, bool)

// ThreatAssessor scores a detected entity in [0,1].
type ThreatAssessor func(target EntityID, observerPos, targetPos Vec3) float64

// BehaviorCallbacks are optional notification hooks. They must not block;
// a panicking, slow-failing, or absent callback never affects transitions.
type BehaviorCallbacks struct {
	OnStateChanged   func(old, next PerceptionState)
	OnTargetDetected func(EntityID)
	OnTargetLost     func(EntityID)
}

// PerceptionBehavior consumes one observer's VisibilityState each tick and
// drives the reactive state machine. It owns PerceptionState exclusively.
type PerceptionBehavior struct {
	owner    EntityID
	label    string
	cfg      BehaviorConfig
	classify Classifier
	resolve  PositionResolver
	threat   ThreatAssessor
	cb       BehaviorCallbacks
	log      *SimLog

	state            PerceptionState
	previous         PerceptionState
	stateEnteredTime float64

	hasTarget bool
	current   TargetRecord

	detected map[EntityID]struct{}
	classes  map[EntityID]TargetClass
	lastPos  map[EntityID]Vec3

	lostTargets []TargetRecord

	investigationPoint Vec3
	investigationStart float64

	lastConsumedUpdate float64
}

// NewPerceptionBehavior builds a state machine for one observer. classify
// must be non-nil (it is the injected policy); resolve supplies entity
// positions from the external entity layer.
func NewPerceptionBehavior(owner EntityID, cfg BehaviorConfig, classify Classifier, resolve PositionResolver) *PerceptionBehavior {
	if cfg.PerceptionMultiplier <= 0 {
		cfg.PerceptionMultiplier = 1
	}
	return &PerceptionBehavior{
		owner:    owner,
		label:    fmt.Sprintf("E%d", owner),
		cfg:      cfg,
		classify: classify,
		resolve:  resolve,
		threat:   defaultThreat,
		state:    StateIdle,
		previous: StateIdle,
		detected: make(map[EntityID]struct{}),
		classes:  make(map[EntityID]TargetClass),
		lastPos:  make(map[EntityID]Vec3),
	}
}

// SetCallbacks installs the optional notification hooks.
func (b *PerceptionBehavior) SetCallbacks(cb BehaviorCallbacks) { b.cb = cb }

// SetThreatAssessor overrides the distance-based default threat score.
func (b *PerceptionBehavior) SetThreatAssessor(t ThreatAssessor) {
	if t != nil {
		b.threat = t
	}
}

// AttachLog routes state and target events into a structured log.
func (b *PerceptionBehavior) AttachLog(log *SimLog) { b.log = log }

func (b *PerceptionBehavior) State() PerceptionState         { return b.state }
func (b *PerceptionBehavior) PreviousState() PerceptionState { return b.previous }
func (b *PerceptionBehavior) StateEnteredTime() float64      { return b.stateEnteredTime }
func (b *PerceptionBehavior) InvestigationPoint() Vec3       { return b.investigationPoint }

// CurrentTarget returns the tracked target, if any.
func (b *PerceptionBehavior) CurrentTarget() (TargetRecord, bool) {
	return b.current, b.hasTarget
}

// DetectedCount is the number of entities registered this tick.
func (b *PerceptionBehavior) DetectedCount() int { return len(b.detected) }

func defaultThreat(_ EntityID, observerPos, targetPos Vec3) float64 {
	dist := targetPos.Sub(observerPos).Len()
	return 1 - math.Min(dist/50, 1)
}

// Update consumes the freshest snapshot once per tick. An invalid or
// regressed snapshot means "unknown" and causes no transition at all.
func (b *PerceptionBehavior) Update(tick int, now float64, selfPos Vec3, vs *VisibilityState) {
	if !vs.Valid() {
		b.log.AddVerbose(tick, b.label, "behavior", "skipped", "invalid visibility state", 0)
		return
	}
	if vs.LastUpdateTime() < b.lastConsumedUpdate {
		b.log.AddVerbose(tick, b.label, "behavior", "skipped", "stale visibility state", vs.LastUpdateTime())
		return
	}
	b.lastConsumedUpdate = vs.LastUpdateTime()

	b.detectTargets(tick, now, selfPos, vs)
	b.step(tick, now, selfPos, vs)
}

// detectTargets refreshes the detected set from the snapshot, classifying
// each newly-seen entity exactly once and recording the ones that slipped
// away for later investigation.
func (b *PerceptionBehavior) detectTargets(tick int, now float64, selfPos Vec3, vs *VisibilityState) {
	prev := b.detected
	b.detected = make(map[EntityID]struct{}, len(prev))

	reach := b.cfg.DetectionDistance * b.cfg.PerceptionMultiplier
	for _, id := range vs.VisibleEntities() {
		if id == b.owner {
			continue
		}
		pos, ok := b.resolve(id)
		if !ok {
			continue
		}
		if pos.Sub(selfPos).Len() > reach {
			continue
		}
		b.detected[id] = struct{}{}
		b.lastPos[id] = pos
		if _, seen := prev[id]; !seen {
			b.classes[id] = b.classifyGuarded(id)
			b.invokeDetected(id)
			b.log.Add(tick, b.label, "target", "detected",
				fmt.Sprintf("entity=%d class=%s", id, b.classes[id]), float64(id))
		}
	}

	for id := range prev {
		if _, still := b.detected[id]; still {
			continue
		}
		b.lostTargets = append(b.lostTargets, TargetRecord{
			EntityID:          id,
			Class:             b.classes[id],
			LastKnownPosition: b.lastPos[id],
			LastSeenTime:      now,
		})
		b.invokeLost(id)
		b.log.Add(tick, b.label, "target", "lost", fmt.Sprintf("entity=%d", id), float64(id))
	}

	b.selectTarget(tick, now, selfPos)
}

// selectTarget picks the most pressing detected entity: any predator by
// threat first, otherwise the closest prey. Candidates are walked in id
// order so replays select identically.
func (b *PerceptionBehavior) selectTarget(tick int, now float64, selfPos Vec3) {
	ids := make([]EntityID, 0, len(b.detected))
	for id := range b.detected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var predator, prey EntityID
	predThreat := -1.0
	preyThreat := 0.0
	preyDist := math.MaxFloat64
	predFound, preyFound := false, false

	for _, id := range ids {
		pos := b.lastPos[id]
		dist := pos.Sub(selfPos).Len()
		threat := clamp01(b.threat(id, selfPos, pos))

		switch b.classes[id] {
		case ClassPredator:
			if threat > predThreat {
				predator, predThreat, predFound = id, threat, true
			}
		case ClassPrey:
			if dist < preyDist {
				prey, preyThreat, preyDist, preyFound = id, threat, dist, true
			}
		}
	}

	var best EntityID
	bestThreat := 0.0
	found := true
	switch {
	// A serious predator outranks food; a weak one only wins by default.
	case predFound && (predThreat >= 0.5 || !preyFound):
		best, bestThreat = predator, predThreat
	case preyFound:
		best, bestThreat = prey, preyThreat
	default:
		found = false
	}

	switch {
	case !found:
		if b.hasTarget {
			b.hasTarget = false
			b.current = TargetRecord{}
		}
	case !b.hasTarget || best != b.current.EntityID:
		b.hasTarget = true
		b.current = TargetRecord{
			EntityID:          best,
			Class:             b.classes[best],
			LastKnownPosition: b.lastPos[best],
			LastSeenTime:      now,
			ThreatLevel:       bestThreat,
		}
		b.log.Add(tick, b.label, "target", "selected",
			fmt.Sprintf("entity=%d class=%s threat=%.2f", best, b.current.Class, b.current.ThreatLevel), float64(best))
	default:
		b.current.LastKnownPosition = b.lastPos[best]
		b.current.LastSeenTime = now
		b.current.ThreatLevel = bestThreat
	}
}

// step evaluates at most one transition per tick.
func (b *PerceptionBehavior) step(tick int, now float64, selfPos Vec3, vs *VisibilityState) {
	switch b.state {
	case StateIdle:
		b.stepIdle(tick, now, selfPos)
	case StateAlert:
		b.stepAlert(tick, now, selfPos)
	case StatePursuing:
		b.stepPursuing(tick, now, selfPos, vs)
	case StateFleeing:
		b.stepFleeing(tick, now, selfPos)
	case StateInvestigating:
		b.stepInvestigating(tick, now, selfPos, vs)
	case StateHiding:
		if !b.hasTarget {
			b.changeState(tick, now, StateAlert)
		}
	}
}

func (b *PerceptionBehavior) stepIdle(tick int, now float64, selfPos Vec3) {
	if !b.hasTarget {
		return
	}
	if b.current.LastKnownPosition.Sub(selfPos).Len() <= b.cfg.AlertDistance {
		b.changeState(tick, now, StateAlert)
	}
}

func (b *PerceptionBehavior) stepAlert(tick int, now float64, selfPos Vec3) {
	if !b.hasTarget {
		if b.cfg.CanInvestigate && len(b.lostTargets) > 0 {
			last := b.lostTargets[len(b.lostTargets)-1]
			b.investigationPoint = last.LastKnownPosition
			b.investigationStart = now
			b.changeState(tick, now, StateInvestigating)
			return
		}
		if now-b.stateEnteredTime >= b.cfg.AlertTimeout {
			b.lostTargets = nil
			b.changeState(tick, now, StateIdle)
		}
		return
	}

	dist := b.current.LastKnownPosition.Sub(selfPos).Len()
	switch {
	case b.shouldFlee(dist):
		b.changeState(tick, now, StateFleeing)
	case b.shouldPursue(dist):
		b.changeState(tick, now, StatePursuing)
	}
}

func (b *PerceptionBehavior) stepPursuing(tick int, now float64, selfPos Vec3, vs *VisibilityState) {
	if !b.hasTarget || !vs.CanSeeEntity(b.current.EntityID) {
		b.changeState(tick, now, StateAlert)
		return
	}
	if b.current.LastKnownPosition.Sub(selfPos).Len() > b.cfg.PursuitDistance {
		b.changeState(tick, now, StateAlert)
	}
}

func (b *PerceptionBehavior) stepFleeing(tick int, now float64, selfPos Vec3) {
	if !b.hasTarget {
		b.changeState(tick, now, StateAlert)
		return
	}
	if b.current.LastKnownPosition.Sub(selfPos).Len() >= b.cfg.FleeDistance {
		b.changeState(tick, now, StateAlert)
	}
}

func (b *PerceptionBehavior) stepInvestigating(tick int, now float64, selfPos Vec3, vs *VisibilityState) {
	if b.hasTarget && vs.CanSeeEntity(b.current.EntityID) {
		dist := b.current.LastKnownPosition.Sub(selfPos).Len()
		if b.shouldPursue(dist) {
			b.changeState(tick, now, StatePursuing)
		} else {
			b.changeState(tick, now, StateAlert)
		}
		return
	}

	if now-b.investigationStart >= b.cfg.InvestigationTime {
		b.lostTargets = nil
		b.changeState(tick, now, StateIdle)
		return
	}
	if b.investigationPoint.Sub(selfPos).Len() < investigationArriveDistance {
		b.lostTargets = nil
		b.changeState(tick, now, StateIdle)
	}
}

func (b *PerceptionBehavior) shouldPursue(dist float64) bool {
	return b.cfg.CanPursue &&
		b.current.Class == ClassPrey &&
		dist <= b.cfg.PursuitDistance
}

func (b *PerceptionBehavior) shouldFlee(dist float64) bool {
	return b.cfg.CanFlee &&
		b.current.Class == ClassPredator &&
		dist <= b.cfg.FleeDistance &&
		b.current.ThreatLevel > fleeThreatFloor
}

// EnterHiding forces the Hiding state; taking cover is a decision the
// movement/gameplay layer makes, this machine only handles leaving it.
func (b *PerceptionBehavior) EnterHiding(tick int, now float64) {
	b.changeState(tick, now, StateHiding)
}

func (b *PerceptionBehavior) changeState(tick int, now float64, next PerceptionState) {
	if b.state == next {
		return
	}
	old := b.state
	b.previous = old
	b.state = next
	b.stateEnteredTime = now

	b.invokeStateChanged(old, next)
	b.log.Add(tick, b.label, "behavior", "state_change",
		fmt.Sprintf("%s → %s", old, next), float64(next))
}

func (b *PerceptionBehavior) classifyGuarded(id EntityID) (class TargetClass) {
	class = ClassNeutral
	if b.classify == nil {
		return class
	}
	defer func() { _ = recover() }()
	class = b.classify(id)
	return class
}

func (b *PerceptionBehavior) invokeStateChanged(old, next PerceptionState) {
	if b.cb.OnStateChanged == nil {
		return
	}
	defer func() { _ = recover() }()
	b.cb.OnStateChanged(old, next)
}

func (b *PerceptionBehavior) invokeDetected(id EntityID) {
	if b.cb.OnTargetDetected == nil {
		return
	}
	defer func() { _ = recover() }()
	b.cb.OnTargetDetected(id)
}

func (b *PerceptionBehavior) invokeLost(id EntityID) {
	if b.cb.OnTargetLost == nil {
		return
	}
	defer func() { _ = recover() }()
	b.cb.OnTargetLost(id)
}
