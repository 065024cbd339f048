package sense

import "fmt"

// GridWorld is an in-memory WorldOcclusionProvider backed by a sparse tile
// map. It is the provider used by the test harness, the viewer, and the
// headless report command; a streaming world system would supply its own
// implementation.
type GridWorld struct {
	tiles    map[TileCoordinate]OcclusionProperties
	entities map[EntityID]Vec3
}

func NewGridWorld() *GridWorld {
	return &GridWorld{
		tiles:    make(map[TileCoordinate]OcclusionProperties),
		entities: make(map[EntityID]Vec3),
	}
}

// SetTile writes the occlusion properties for one tile. Unset tiles are
// open air.
func (w *GridWorld) SetTile(c TileCoordinate, occ OcclusionProperties) {
	w.tiles[c] = occ
}

// ClearTile removes a tile, returning it to open air.
func (w *GridWorld) ClearTile(c TileCoordinate) {
	delete(w.tiles, c)
}

// PlaceEntity records or moves an entity position.
func (w *GridWorld) PlaceEntity(id EntityID, pos Vec3) {
	w.entities[id] = pos
}

// RemoveEntity drops an entity from proximity queries.
func (w *GridWorld) RemoveEntity(id EntityID) {
	delete(w.entities, id)
}

// EntityPosition returns an entity's current position.
func (w *GridWorld) EntityPosition(id EntityID) (Vec3, bool) {
	p, ok := w.entities[id]
	return p, ok
}

// Occlusion implements WorldOcclusionProvider.
func (w *GridWorld) Occlusion(c TileCoordinate) (OcclusionProperties, bool) {
	occ, ok := w.tiles[c]
	return occ, ok
}

// EntitiesNear implements WorldOcclusionProvider with a linear scan; the
// grids exercised here are small enough that spatial indexing isn't worth
// carrying.
func (w *GridWorld) EntitiesNear(center Vec3, radius float64) []EntityMark {
	var out []EntityMark
	for id, pos := range w.entities {
		if pos.Sub(center).Len() <= radius {
			out = append(out, EntityMark{ID: id, Pos: pos})
		}
	}
	return out
}

// Entities snapshots every placed entity, for render and report passes.
func (w *GridWorld) Entities() []EntityMark {
	out := make([]EntityMark, 0, len(w.entities))
	for id, pos := range w.entities {
		out = append(out, EntityMark{ID: id, Pos: pos})
	}
	return out
}

// Standard map legend used by ASCII scenario maps and the harness.
//
//	'.' open ground        ' ' open ground
//	'#' opaque wall, 3m    '-' low wall, 1m (see over when elevated)
//	'o' window: clear line but halves visibility
//	'f' foliage: see-through-ish, soaks visibility
var defaultLegend = map[rune]OcclusionProperties{
	'.': {Transparency: 1},
	' ': {Transparency: 1},
	'#': {BlocksSight: true, Transparency: 0, Height: 3},
	'-': {BlocksSight: true, Transparency: 0, Height: 1},
	'o': {Transparency: 0.5, Height: 3},
	'f': {Transparency: 0.7, Height: 2, IsFoliage: true},
}

// LoadASCIIMap fills the z=0 plane from rows of legend runes. Row 0 is
// y=0; column i is x=i. Unknown runes are an error so scenario typos
// surface at load time rather than as silently-open tiles.
func (w *GridWorld) LoadASCIIMap(rows []string, legend map[rune]OcclusionProperties) error {
	if legend == nil {
		legend = defaultLegend
	}
	for y, row := range rows {
		for x, r := range row {
			occ, ok := legend[r]
			if !ok {
				return fmt.Errorf("map row %d col %d: unknown tile rune %q", y, x, r)
			}
			if occ == airOcclusion || (!occ.BlocksSight && occ.Transparency == 1) {
				continue
			}
			w.SetTile(TileCoordinate{X: x, Y: y}, occ)
		}
	}
	return nil
}
