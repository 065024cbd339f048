package sense

import (
	"math"
	"testing"
)

func TestLightLevel_DayCycleBands(t *testing.T) {
	cases := []struct {
		timeOfDay float64
		want      float64
	}{
		{0.0, nightLight},
		{0.1, nightLight},
		{0.25, twilightLight},
		{0.5, dayLight},
		{0.75, twilightLight},
		{0.9, nightLight},
	}
	for _, c := range cases {
		env := EnvironmentalConditions{TimeOfDay: c.timeOfDay, AmbientLightLevel: 1}
		if got := env.LightLevel(); got != c.want {
			t.Fatalf("time %.2f: expected light %.1f, got %.2f", c.timeOfDay, c.want, got)
		}
	}
}

func TestLightLevel_AmbientCapsDaylight(t *testing.T) {
	env := EnvironmentalConditions{TimeOfDay: 0.5, AmbientLightLevel: 0.3}
	if got := env.LightLevel(); got != 0.3 {
		t.Fatalf("expected ambient cap 0.3 at noon, got %.2f", got)
	}
}

func TestLightLevel_TimeWrapsPastOne(t *testing.T) {
	a := EnvironmentalConditions{TimeOfDay: 0.5, AmbientLightLevel: 1}
	b := EnvironmentalConditions{TimeOfDay: 1.5, AmbientLightLevel: 1}
	if a.LightLevel() != b.LightLevel() {
		t.Fatalf("time 1.5 should behave like 0.5: got %.2f vs %.2f", b.LightLevel(), a.LightLevel())
	}
}

func TestWeatherAttenuation_ClearIsOne(t *testing.T) {
	if got := ClearDay.WeatherAttenuation(); got != 1 {
		t.Fatalf("clear day attenuation should be 1, got %.3f", got)
	}
}

func TestWeatherAttenuation_SingleEffect(t *testing.T) {
	env := ClearDay
	env.FogDensity = 0.5
	want := 1 - 0.5*fogCoeff
	if got := env.WeatherAttenuation(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.3f for half fog, got %.3f", want, got)
	}
}

func TestWeatherAttenuation_EffectsMultiply(t *testing.T) {
	env := ClearDay
	env.FogDensity = 1
	env.SmokeDensity = 1
	want := (1 - fogCoeff) * (1 - smokeCoeff)
	if got := env.WeatherAttenuation(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.3f for fog+smoke, got %.3f", want, got)
	}
}

func TestWeatherAttenuation_MonotoneInFog(t *testing.T) {
	prev := 2.0
	for fog := 0.0; fog <= 1.0001; fog += 0.1 {
		env := ClearDay
		env.FogDensity = fog
		got := env.WeatherAttenuation()
		if got > prev {
			t.Fatalf("attenuation rose from %.3f to %.3f as fog increased to %.1f", prev, got, fog)
		}
		prev = got
	}
}

func TestEffectiveRange_BlindIsZero(t *testing.T) {
	p := DefaultVisionProfile()
	p.IsBlind = true
	if got := EffectiveRange(p, ClearDay); got != 0 {
		t.Fatalf("blind observer should have zero range, got %.2f", got)
	}
}

func TestEffectiveRange_ClearDayIsBase(t *testing.T) {
	p := DefaultVisionProfile()
	if got := EffectiveRange(p, ClearDay); got != p.BaseRangeMeters {
		t.Fatalf("expected base range %.0f, got %.2f", p.BaseRangeMeters, got)
	}
}

func TestEffectiveRange_NightVisionSubstitutesForLight(t *testing.T) {
	night := EnvironmentalConditions{TimeOfDay: 0, AmbientLightLevel: 1}

	plain := DefaultVisionProfile()
	if got := EffectiveRange(plain, night); got != plain.BaseRangeMeters*nightLight {
		t.Fatalf("expected night range %.1f, got %.2f", plain.BaseRangeMeters*nightLight, got)
	}

	cat := DefaultVisionProfile()
	cat.NightVision = 0.7
	if got := EffectiveRange(cat, night); got != cat.BaseRangeMeters*0.7 {
		t.Fatalf("expected night-vision range %.1f, got %.2f", cat.BaseRangeMeters*0.7, got)
	}
}

func TestEffectiveRange_ThermalIgnoresWeatherNotDarkness(t *testing.T) {
	foggyNight := EnvironmentalConditions{TimeOfDay: 0, AmbientLightLevel: 1, FogDensity: 1}

	p := DefaultVisionProfile()
	p.HasThermalVision = true
	want := p.BaseRangeMeters * nightLight // weather term skipped, light still applies
	if got := EffectiveRange(p, foggyNight); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.2f, got %.2f", want, got)
	}
}

func TestEffectiveRange_DazedHalvesAcuity(t *testing.T) {
	p := DefaultVisionProfile()
	p.IsDazed = true
	if got := EffectiveRange(p, ClearDay); got != p.BaseRangeMeters*0.5 {
		t.Fatalf("expected dazed range %.1f, got %.2f", p.BaseRangeMeters*0.5, got)
	}
}

func TestEffectiveRange_FocusExtendsReach(t *testing.T) {
	p := DefaultVisionProfile()
	p.IsFocused = true
	want := p.BaseRangeMeters * p.FocusRangeBonus
	if got := EffectiveRange(p, ClearDay); got != want {
		t.Fatalf("expected focused range %.1f, got %.2f", want, got)
	}
}

func TestEffectiveRange_MonotoneInFog(t *testing.T) {
	p := DefaultVisionProfile()
	prev := math.Inf(1)
	for fog := 0.0; fog <= 1.0001; fog += 0.25 {
		env := ClearDay
		env.FogDensity = fog
		got := EffectiveRange(p, env)
		if got > prev {
			t.Fatalf("range rose from %.2f to %.2f as fog increased to %.2f", prev, got, fog)
		}
		prev = got
	}
}
