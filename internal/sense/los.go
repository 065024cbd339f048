package sense

import "math"

// OcclusionType names what ended a sightline.
type OcclusionType int

const (
	OcclusionNone         OcclusionType = iota
	OcclusionFullBlock                  // solid occluder taller than the observer
	OcclusionPartialBlock               // accumulated transparency reached zero
	OcclusionHeightBlock                // low obstacle the dipping sightline clipped
	OcclusionFog
	OcclusionDarkness
	OcclusionWeather
)

func (o OcclusionType) String() string {
	switch o {
	case OcclusionNone:
		return "none"
	case OcclusionFullBlock:
		return "full_block"
	case OcclusionPartialBlock:
		return "partial_block"
	case OcclusionHeightBlock:
		return "height_block"
	case OcclusionFog:
		return "fog"
	case OcclusionDarkness:
		return "darkness"
	case OcclusionWeather:
		return "weather"
	default:
		return "unknown"
	}
}

// LOSResult is the outcome of a single observer-to-target sight query.
type LOSResult struct {
	HasLineOfSight   bool
	Distance         float64
	EffectiveRange   float64
	VisibilityFactor float64 // [0,1]
	OcclusionPoint   *TileCoordinate
	OcclusionType    OcclusionType
}

// traceLine steps a 3D Bresenham line from start to end, visiting every
// tile on the line exactly once (start and end included). The driving axis
// is the one with the largest delta; on equal deltas the tie breaks X, then
// Y, then Z, so a line between the same two points always walks the same
// tiles — required for replay and testing.
func traceLine(start, end TileCoordinate, visit func(tile TileCoordinate, dist float64) bool) {
	dx := abs(end.X - start.X)
	dy := abs(end.Y - start.Y)
	dz := abs(end.Z - start.Z)

	xs := step(start.X, end.X)
	ys := step(start.Y, end.Y)
	zs := step(start.Z, end.Z)

	x, y, z := start.X, start.Y, start.Z
	if !visit(start, 0) {
		return
	}

	switch {
	case dx >= dy && dx >= dz:
		p1 := 2*dy - dx
		p2 := 2*dz - dx
		for x != end.X {
			x += xs
			if p1 >= 0 {
				y += ys
				p1 -= 2 * dx
			}
			if p2 >= 0 {
				z += zs
				p2 -= 2 * dx
			}
			p1 += 2 * dy
			p2 += 2 * dz
			cur := TileCoordinate{x, y, z}
			if !visit(cur, tileDistance(start, cur)) {
				return
			}
		}
	case dy >= dx && dy >= dz:
		p1 := 2*dx - dy
		p2 := 2*dz - dy
		for y != end.Y {
			y += ys
			if p1 >= 0 {
				x += xs
				p1 -= 2 * dy
			}
			if p2 >= 0 {
				z += zs
				p2 -= 2 * dy
			}
			p1 += 2 * dx
			p2 += 2 * dz
			cur := TileCoordinate{x, y, z}
			if !visit(cur, tileDistance(start, cur)) {
				return
			}
		}
	default:
		p1 := 2*dy - dz
		p2 := 2*dx - dz
		for z != end.Z {
			z += zs
			if p1 >= 0 {
				y += ys
				p1 -= 2 * dz
			}
			if p2 >= 0 {
				x += xs
				p2 -= 2 * dz
			}
			p1 += 2 * dy
			p2 += 2 * dx
			cur := TileCoordinate{x, y, z}
			if !visit(cur, tileDistance(start, cur)) {
				return
			}
		}
	}
}

// CheckLineOfSight walks the line from the observer's eye to the target,
// accumulating transparency and stopping at the first occluder the
// sightline cannot clear. The sightline height is interpolated linearly
// from the eye elevation at the origin down to the target's elevation, so
// an elevated observer sees over low walls that would block a ground-level
// one. Unknown tiles are transparent air.
func CheckLineOfSight(origin, target TileCoordinate, profile VisionProfile, env EnvironmentalConditions, world WorldOcclusionProvider) LOSResult {
	r := LOSResult{
		EffectiveRange: EffectiveRange(profile, env),
		Distance:       tileDistance(origin, target),
	}

	if origin == target {
		r.HasLineOfSight = true
		r.VisibilityFactor = 1
		return r
	}

	eyeZ := float64(origin.Z) + profile.EyeHeightMeters
	targetZ := float64(target.Z)
	remaining := 1.0
	var blockedAt *TileCoordinate
	blockType := OcclusionNone

	traceLine(origin, target, func(tile TileCoordinate, d float64) bool {
		if tile == origin || tile == target {
			return true
		}
		occ, ok := world.Occlusion(tile)
		if !ok {
			return true
		}

		// The sightline only interacts with an obstacle it passes through;
		// clearing over the top costs nothing.
		rayH := eyeZ + (targetZ-eyeZ)*(d/r.Distance)
		if rayH > float64(tile.Z)+occ.Height {
			return true
		}

		if occ.BlocksSight {
			c := tile
			blockedAt = &c
			if occ.Height >= profile.EyeHeightMeters {
				blockType = OcclusionFullBlock
			} else {
				blockType = OcclusionHeightBlock
			}
			remaining = 0
			return false
		}

		remaining *= occ.Transparency
		if remaining <= 0 {
			c := tile
			blockedAt = &c
			blockType = OcclusionPartialBlock
			return false
		}
		return true
	})

	if blockedAt != nil {
		r.OcclusionPoint = blockedAt
		r.OcclusionType = blockType
		return r
	}

	if r.Distance > r.EffectiveRange {
		r.OcclusionType = rangeOcclusionType(profile, env)
		return r
	}

	r.HasLineOfSight = remaining > 0
	r.VisibilityFactor = remaining * distanceFalloff(r.Distance, r.EffectiveRange)
	return r
}

// distanceFalloff grades visibility down toward the edge of the effective
// range: 1 at the observer, 0 at and beyond the range limit.
func distanceFalloff(dist, effectiveRange float64) float64 {
	if effectiveRange <= 0 {
		return 0
	}
	f := dist / effectiveRange
	return clamp01(1 - f*f)
}

// rangeOcclusionType classifies why a target beyond effective range is
// unseen, by whichever environmental term shaved the most off the range.
func rangeOcclusionType(p VisionProfile, env EnvironmentalConditions) OcclusionType {
	if p.IsBlind {
		return OcclusionDarkness
	}

	light := math.Max(env.LightLevel(), clamp01(p.NightVision))
	weather := 1.0
	if !p.HasThermalVision {
		weather = env.WeatherAttenuation()
	}

	switch {
	case light < weather:
		return OcclusionDarkness
	case env.FogDensity > 0 && env.FogDensity >= maxWeatherDensity(env):
		return OcclusionFog
	case weather < 1:
		return OcclusionWeather
	default:
		return OcclusionNone
	}
}

func maxWeatherDensity(env EnvironmentalConditions) float64 {
	m := env.RainIntensity
	for _, d := range [...]float64{env.SnowIntensity, env.DustDensity, env.SmokeDensity, env.GasDensity} {
		m = math.Max(m, d)
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func step(from, to int) int {
	if to > from {
		return 1
	}
	return -1
}
