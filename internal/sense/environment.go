package sense

import "math"

// EnvironmentalConditions are an immutable value passed into every query.
// They are set by an external weather/time-of-day driver; the engine keeps
// no hidden weather state of its own.
type EnvironmentalConditions struct {
	TimeOfDay         float64 // [0,1): 0 = midnight, 0.5 = noon
	AmbientLightLevel float64 // [0,1]: hard cap on available light

	FogDensity    float64 // all densities in [0,1]
	RainIntensity float64
	SnowIntensity float64
	DustDensity   float64
	SmokeDensity  float64
	GasDensity    float64
}

// ClearDay is the neutral environment: noon, full light, no weather.
var ClearDay = EnvironmentalConditions{TimeOfDay: 0.5, AmbientLightLevel: 1}

// Weather attenuation coefficients. Smoke hits hardest, fog close behind,
// rain is the mildest.
const (
	fogCoeff   = 0.8
	rainCoeff  = 0.3
	snowCoeff  = 0.5
	dustCoeff  = 0.7
	smokeCoeff = 0.9
	gasCoeff   = 0.6
)

// Day/night light plateaus.
const (
	nightLight    = 0.1
	twilightLight = 0.5
	dayLight      = 1.0
)

// LightBands configure where night and dawn/dusk begin on the 0..1 day
// cycle, measured from midnight (0/1). Night covers [0,NightEdge) and
// (1-NightEdge,1]; dawn/dusk extends to TwilightEdge on each side.
type LightBands struct {
	NightEdge    float64
	TwilightEdge float64
}

// DefaultLightBands matches the stock day cycle: night until 0.2,
// dawn until 0.3, dusk from 0.7, night after 0.8.
var DefaultLightBands = LightBands{NightEdge: 0.2, TwilightEdge: 0.3}

// LightLevel returns the ambient light implied by the time of day with the
// default bands, capped by AmbientLightLevel (a cave stays dark at noon).
func (c EnvironmentalConditions) LightLevel() float64 {
	return c.LightLevelWith(DefaultLightBands)
}

// LightLevelWith is LightLevel with configurable band edges.
func (c EnvironmentalConditions) LightLevelWith(b LightBands) float64 {
	t := c.TimeOfDay - math.Floor(c.TimeOfDay)

	var fromTime float64
	switch {
	case t < b.NightEdge || t > 1-b.NightEdge:
		fromTime = nightLight
	case t < b.TwilightEdge || t > 1-b.TwilightEdge:
		fromTime = twilightLight
	default:
		fromTime = dayLight
	}

	return math.Min(clamp01(c.AmbientLightLevel), fromTime)
}

// WeatherAttenuation is the multiplicative visibility modifier from all
// airborne effects: prod(1 - density*coeff), each term clamped at 0, the
// result clamped to [0,1]. Increasing any density never increases it.
func (c EnvironmentalConditions) WeatherAttenuation() float64 {
	m := 1.0
	for _, term := range [...]struct{ density, coeff float64 }{
		{c.FogDensity, fogCoeff},
		{c.RainIntensity, rainCoeff},
		{c.SnowIntensity, snowCoeff},
		{c.DustDensity, dustCoeff},
		{c.SmokeDensity, smokeCoeff},
		{c.GasDensity, gasCoeff},
	} {
		m *= math.Max(0, 1-clamp01(term.density)*term.coeff)
	}
	return clamp01(m)
}

// EffectiveRange is the maximum distance a profile can see under the given
// conditions. Night vision substitutes for light, thermal vision bypasses
// weather entirely (but not blindness), dazed halves acuity, and focusing
// (aiming, binoculars) extends reach.
func EffectiveRange(p VisionProfile, c EnvironmentalConditions) float64 {
	if p.IsBlind {
		return 0
	}

	light := math.Max(c.LightLevel(), clamp01(p.NightVision))

	env := 1.0
	if !p.HasThermalVision {
		env = c.WeatherAttenuation()
	}

	acuity := p.VisualAcuity
	if p.IsDazed {
		acuity *= 0.5
	}

	r := p.BaseRangeMeters * light * env * acuity
	if p.IsFocused {
		r *= p.FocusRangeBonus
	}
	return r
}
