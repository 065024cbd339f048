package sense

import (
	"math"
	"sort"
)

// An occluder this see-through still lets rays pass; anything below casts
// an attenuating shadow over the tiles behind it.
const partialShadowThreshold = 0.9

// Octant transforms (xx, xy, yx, yy): tile offset for scan position
// (col,row) is dx = col*xx + row*xy, dy = col*yx + row*yy, with
// 0 <= col <= row. Processing order is fixed so results replay identically.
var octantTransforms = [8][4]int{
	{1, 0, 0, 1},
	{0, 1, 1, 0},
	{0, -1, 1, 0},
	{-1, 0, 0, 1},
	{-1, 0, 0, -1},
	{0, -1, -1, 0},
	{0, 1, -1, 0},
	{1, 0, 0, -1},
}

// shadowInterval is one angular slice of an octant claimed by an occluder.
// transmit 0 is a hard shadow; anything in (0,1) attenuates rays passing
// through (windows, foliage) without removing them.
type shadowInterval struct {
	start, end float64 // slopes within the octant
	transmit   float64
}

// visibleTransmit returns the fraction of light reaching a tile whose
// edges sit at the given slopes. A tile is hard-shadowed only when both
// edges fall inside opaque intervals; attenuating intervals multiply into
// the transmittance sampled at the tile center.
func visibleTransmit(shadows []shadowInterval, left, right, center float64) float64 {
	leftCovered, rightCovered := false, false
	t := 1.0
	for _, s := range shadows {
		if s.transmit == 0 {
			if s.start <= left && left <= s.end {
				leftCovered = true
			}
			if s.start <= right && right <= s.end {
				rightCovered = true
			}
		} else if s.start <= center && center <= s.end {
			t *= s.transmit
		}
	}
	if leftCovered && rightCovered {
		return 0
	}
	return t
}

// fullyShadowed reports whether opaque shadows cover the whole octant, at
// which point farther rings cannot contain anything visible.
func fullyShadowed(shadows []shadowInterval) bool {
	var opaque []shadowInterval
	for _, s := range shadows {
		if s.transmit == 0 {
			opaque = append(opaque, s)
		}
	}
	if len(opaque) == 0 {
		return false
	}
	sort.Slice(opaque, func(i, j int) bool { return opaque[i].start < opaque[j].start })

	reach := 0.0
	for _, s := range opaque {
		if s.start > reach {
			return false
		}
		if s.end > reach {
			reach = s.end
		}
		if reach >= 1 {
			return true
		}
	}
	return false
}

func slopeAt(col, row int, colOff, rowOff float64) float64 {
	return (float64(col) + colOff) / (float64(row) + rowOff)
}

// coneFilter restricts results to the observer's field-of-view cone.
type coneFilter struct {
	enabled bool
	look    Vec3
	halfCos float64
	halfDeg float64
}

func newConeFilter(p VisionProfile) coneFilter {
	angle := p.fovAngle()
	if angle >= 360 {
		return coneFilter{}
	}
	look := p.LookDirection.Normalized()
	if look.Len() < 1e-9 {
		look = Vec3{X: 1}
	}
	half := angle / 2
	return coneFilter{
		enabled: true,
		look:    look,
		halfCos: math.Cos(half * math.Pi / 180),
		halfDeg: half,
	}
}

func (c coneFilter) contains(dx, dy int) bool {
	if !c.enabled {
		return true
	}
	dir := Vec3{X: float64(dx), Y: float64(dy)}.Normalized()
	if dir.Len() < 1e-9 {
		return true
	}
	return dir.Dot(c.look) >= c.halfCos
}

// skipOctant is an early-exit: an octant whose whole 45 degree span lies
// outside the cone contributes nothing. Conservative — an octant is only
// skipped when its center is more than halfFOV + 22.5 degrees (plus slack)
// away from the look direction.
func (c coneFilter) skipOctant(oct int) bool {
	if !c.enabled {
		return false
	}
	if math.Hypot(c.look.X, c.look.Y) < 1e-9 {
		return false
	}
	threshold := (c.halfDeg + 22.5 + 1.0) * math.Pi / 180
	if threshold >= math.Pi {
		return false
	}

	tf := octantTransforms[oct]
	v0 := Vec3{X: float64(tf[1]), Y: float64(tf[3])}.Normalized()
	v1 := Vec3{X: float64(tf[0] + tf[1]), Y: float64(tf[2] + tf[3])}.Normalized()
	center := v0.Add(v1).Normalized()
	look2 := Vec3{X: c.look.X, Y: c.look.Y}.Normalized()

	return center.Dot(look2) < math.Cos(threshold)
}

// ComputeFieldOfView runs iterative angular shadow propagation over the 8
// octants around the origin and returns every visible tile with its graded
// factor in (0,1]. Tiles outside the FOV cone never appear, whatever the
// occlusion geometry says; occluders outside the cone still cast shadows
// into it. The origin itself is always visible at factor 1.
func ComputeFieldOfView(origin TileCoordinate, profile VisionProfile, env EnvironmentalConditions, world WorldOcclusionProvider) map[TileCoordinate]float64 {
	out := make(map[TileCoordinate]float64)
	if profile.IsBlind {
		return out
	}
	rangeLimit := EffectiveRange(profile, env)
	if rangeLimit <= 0 {
		return out
	}

	out[origin] = 1

	cone := newConeFilter(profile)
	for oct := range octantTransforms {
		if cone.skipOctant(oct) {
			continue
		}
		castOctant(origin, profile, rangeLimit, env, world, cone, oct, out)
	}
	return out
}

// castOctant scans distance rings outward, maintaining the interval list of
// shadows accumulated from nearer occluders. A tile taller than the
// observer's eye casts a hard shadow when it blocks sight, or an
// attenuating one when it is merely murky; low obstacles are seen over and
// cast nothing.
func castOctant(origin TileCoordinate, profile VisionProfile, rangeLimit float64, env EnvironmentalConditions, world WorldOcclusionProvider, cone coneFilter, oct int, out map[TileCoordinate]float64) {
	tf := octantTransforms[oct]
	eyeH := profile.EyeHeightMeters

	var shadows []shadowInterval
	maxRow := int(math.Ceil(rangeLimit))
	for row := 1; row <= maxRow; row++ {
		if fullyShadowed(shadows) {
			return
		}
		for col := 0; col <= row; col++ {
			dist := math.Sqrt(float64(col*col + row*row))
			if dist > rangeLimit {
				continue
			}

			dx := col*tf[0] + row*tf[1]
			dy := col*tf[2] + row*tf[3]
			tile := TileCoordinate{X: origin.X + dx, Y: origin.Y + dy, Z: origin.Z}

			left := slopeAt(col, row, -0.5, 0.5)
			right := slopeAt(col, row, 0.5, 0.5)
			center := float64(col) / float64(row)

			transmit := visibleTransmit(shadows, left, right, center)
			if transmit > 0 && cone.contains(dx, dy) {
				factor := transmit * distanceFalloff(dist, rangeLimit)
				if factor > 0 {
					// Tiles on octant seams are visited twice; keep the best view.
					if old, seen := out[tile]; !seen || factor > old {
						out[tile] = factor
					}
				}
			}

			occ, ok := world.Occlusion(tile)
			if !ok || occ.Height <= eyeH {
				continue
			}
			switch {
			case occ.BlocksSight:
				shadows = append(shadows, shadowInterval{start: left, end: right, transmit: 0})
			case occ.Transparency < partialShadowThreshold:
				shadows = append(shadows, shadowInterval{start: left, end: right, transmit: occ.Transparency})
			}
		}
	}
}

// resolveVisibleEntities asks the provider for candidates in range and
// keeps those standing on a visible tile whose sightline also survives a
// direct LOS check — the tile grid alone can let a corner case through.
func resolveVisibleEntities(owner EntityID, origin TileCoordinate, profile VisionProfile, env EnvironmentalConditions, world WorldOcclusionProvider, tiles map[TileCoordinate]float64, rangeLimit float64) map[EntityID]struct{} {
	out := make(map[EntityID]struct{})
	for _, mark := range world.EntitiesNear(TileCenter(origin), rangeLimit) {
		if mark.ID == owner {
			continue
		}
		tile := TileOf(mark.Pos)
		if _, seen := tiles[tile]; !seen {
			continue
		}
		los := CheckLineOfSight(origin, tile, profile, env, world)
		if los.HasLineOfSight {
			out[mark.ID] = struct{}{}
		}
	}
	return out
}
