package sense

import "math"

// TileCoordinate identifies one tile in the 3D grid. It is a plain value
// type used as a map key; one tile is one meter on each axis.
type TileCoordinate struct {
	X, Y, Z int
}

// OcclusionProperties describe how a tile interacts with sight. They are
// supplied per-query by the world provider and never cached here.
type OcclusionProperties struct {
	BlocksSight  bool    // solid occluder (walls, rock)
	Transparency float64 // 0 = opaque, 1 = fully see-through
	Height       float64 // physical obstacle height in meters, >= 0
	IsFoliage    bool    // vegetation: partial occlusion
}

// airOcclusion is the non-blocking default used for unknown or unloaded
// tiles so that queries never stall on world-streaming gaps.
var airOcclusion = OcclusionProperties{Transparency: 1}

// EntityID is an opaque handle owned by the external entity layer.
type EntityID uint32

// EntityMark is one entity candidate returned by a proximity query:
// the id plus the position needed to resolve it to a tile.
type EntityMark struct {
	ID  EntityID
	Pos Vec3
}

// WorldOcclusionProvider is the narrow interface the engine consumes.
// Implementations must be safe for concurrent read-only use and must
// return immediately; a missing tile is reported with ok=false and is
// treated as transparent air.
type WorldOcclusionProvider interface {
	Occlusion(coord TileCoordinate) (OcclusionProperties, bool)
	EntitiesNear(center Vec3, radius float64) []EntityMark
}

// Vec3 is a world-space position or direction in meters.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns the unit vector, or the zero vector for a
// near-zero input.
func (v Vec3) Normalized() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// TileOf maps a world position to the tile containing it.
func TileOf(p Vec3) TileCoordinate {
	return TileCoordinate{
		X: int(math.Floor(p.X)),
		Y: int(math.Floor(p.Y)),
		Z: int(math.Floor(p.Z)),
	}
}

// TileCenter returns the world-space center of a tile.
func TileCenter(c TileCoordinate) Vec3 {
	return Vec3{float64(c.X) + 0.5, float64(c.Y) + 0.5, float64(c.Z)}
}

// tileDistance is the Euclidean distance between two tile coordinates.
func tileDistance(a, b TileCoordinate) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	dz := float64(b.Z - a.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
