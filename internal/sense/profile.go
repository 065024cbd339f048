package sense

// VisionProfile describes an observer's vision capabilities. It is owned
// by the entity/gameplay layer — status effects and equipment mutate it
// there — and read-only inside the engine.
type VisionProfile struct {
	BaseRangeMeters float64
	FOVAngleDegrees float64 // (0,360]
	EyeHeightMeters float64

	Perception   float64 // [0,1] ability to notice detail
	NightVision  float64 // [0,1], 1 = full cat-like vision
	VisualAcuity float64 // >= 0, 1 = 20/20

	HasThermalVision bool
	IsBlind          bool
	IsDazed          bool

	FocusedFOVAngleDegrees float64 // narrow cone while aiming
	FocusRangeBonus        float64 // >= 1, range multiplier while focused
	LookDirection          Vec3    // unit vector
	IsFocused              bool
}

// Baseline profile values, used both as the default preset and as the safe
// substitutes for rejected configuration.
const (
	defaultBaseRange    = 50.0
	defaultFOVDegrees   = 210.0
	defaultEyeHeight    = 1.7
	defaultFocusedFOV   = 60.0
	defaultFocusBonus   = 1.5
	defaultVisualAcuity = 1.0
)

// DefaultVisionProfile is a human-shaped baseline looking along +X.
func DefaultVisionProfile() VisionProfile {
	return VisionProfile{
		BaseRangeMeters:        defaultBaseRange,
		FOVAngleDegrees:        defaultFOVDegrees,
		EyeHeightMeters:        defaultEyeHeight,
		Perception:             0.5,
		VisualAcuity:           defaultVisualAcuity,
		FocusedFOVAngleDegrees: defaultFocusedFOV,
		FocusRangeBonus:        defaultFocusBonus,
		LookDirection:          Vec3{X: 1},
	}
}

// NewVisionProfile sanitizes a profile at construction time. Invalid fields
// are substituted with safe defaults rather than surfaced as errors so that
// per-tick queries never have a failure path (bad config is a setup bug,
// not a runtime condition).
func NewVisionProfile(p VisionProfile) VisionProfile {
	if p.BaseRangeMeters <= 0 {
		p.BaseRangeMeters = defaultBaseRange
	}
	if p.FOVAngleDegrees <= 0 || p.FOVAngleDegrees > 360 {
		p.FOVAngleDegrees = defaultFOVDegrees
	}
	if p.EyeHeightMeters < 0 {
		p.EyeHeightMeters = defaultEyeHeight
	}
	p.Perception = clamp01(p.Perception)
	p.NightVision = clamp01(p.NightVision)
	if p.VisualAcuity < 0 {
		p.VisualAcuity = defaultVisualAcuity
	}
	if p.FocusedFOVAngleDegrees <= 0 || p.FocusedFOVAngleDegrees > 360 {
		p.FocusedFOVAngleDegrees = defaultFocusedFOV
	}
	if p.FocusRangeBonus < 1 {
		p.FocusRangeBonus = defaultFocusBonus
	}
	if p.LookDirection.Len() < 1e-9 {
		p.LookDirection = Vec3{X: 1}
	} else {
		p.LookDirection = p.LookDirection.Normalized()
	}
	return p
}

// fovAngle returns the active cone width, honoring focus mode.
func (p VisionProfile) fovAngle() float64 {
	if p.IsFocused {
		return p.FocusedFOVAngleDegrees
	}
	return p.FOVAngleDegrees
}

// GuardProfile: long range, sharp, narrow-ish cone — a sentry on watch.
func GuardProfile() VisionProfile {
	p := DefaultVisionProfile()
	p.BaseRangeMeters = 60
	p.Perception = 0.7
	p.VisualAcuity = 1.1
	return NewVisionProfile(p)
}

// PreyProfile: near-panoramic cone, modest range, decent night vision.
func PreyProfile() VisionProfile {
	p := DefaultVisionProfile()
	p.BaseRangeMeters = 40
	p.FOVAngleDegrees = 320
	p.NightVision = 0.4
	return NewVisionProfile(p)
}

// PredatorProfile: forward cone, long reach, strong night vision.
func PredatorProfile() VisionProfile {
	p := DefaultVisionProfile()
	p.BaseRangeMeters = 70
	p.FOVAngleDegrees = 180
	p.NightVision = 0.7
	p.Perception = 0.8
	return NewVisionProfile(p)
}
