package sense

// VisibilityState is the immutable snapshot of what one observer perceives.
// It is built in full, published by pointer swap, and never mutated
// afterwards, so readers can hold one across a tick without locking. A nil
// or invalid state means "unknown", never "nothing visible".
type VisibilityState struct {
	owner      EntityID
	tiles      map[TileCoordinate]float64
	entities   map[EntityID]struct{}
	lastUpdate float64
	valid      bool
}

// InvalidVisibilityState is the pre-first-computation placeholder.
func InvalidVisibilityState(owner EntityID) *VisibilityState {
	return &VisibilityState{owner: owner}
}

func (s *VisibilityState) Owner() EntityID {
	if s == nil {
		return 0
	}
	return s.owner
}

// Valid reports whether the snapshot holds real data. Consumers must check
// this (and staleness via LastUpdateTime) before trusting an empty result.
func (s *VisibilityState) Valid() bool {
	return s != nil && s.valid
}

func (s *VisibilityState) LastUpdateTime() float64 {
	if s == nil {
		return 0
	}
	return s.lastUpdate
}

// CanSeeTile is an O(1) lookup; a missing tile is simply not visible.
func (s *VisibilityState) CanSeeTile(c TileCoordinate) bool {
	if s == nil {
		return false
	}
	_, ok := s.tiles[c]
	return ok
}

// TileVisibility returns the graded factor for a tile, 0 when unseen.
func (s *VisibilityState) TileVisibility(c TileCoordinate) float64 {
	if s == nil {
		return 0
	}
	return s.tiles[c]
}

func (s *VisibilityState) CanSeeEntity(id EntityID) bool {
	if s == nil {
		return false
	}
	_, ok := s.entities[id]
	return ok
}

func (s *VisibilityState) VisibleTileCount() int {
	if s == nil {
		return 0
	}
	return len(s.tiles)
}

func (s *VisibilityState) VisibleEntityCount() int {
	if s == nil {
		return 0
	}
	return len(s.entities)
}

// VisibleEntities returns a copy of the visible entity set, for consumers
// that iterate (the behavior layer). The snapshot itself stays immutable.
func (s *VisibilityState) VisibleEntities() []EntityID {
	if s == nil {
		return nil
	}
	out := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	return out
}

// ComputeVisibilityState runs a full FOV pass for one observer and wraps
// the result in a fresh snapshot. A blind (or otherwise zero-range)
// observer gets an empty but valid snapshot without paying for the FOV
// walk — empty-and-valid is a real answer, unlike the invalid placeholder.
func ComputeVisibilityState(owner EntityID, origin TileCoordinate, profile VisionProfile, env EnvironmentalConditions, world WorldOcclusionProvider, now float64) *VisibilityState {
	s := &VisibilityState{
		owner:      owner,
		lastUpdate: now,
		valid:      true,
	}

	if profile.IsBlind {
		s.tiles = map[TileCoordinate]float64{}
		s.entities = map[EntityID]struct{}{}
		return s
	}

	s.tiles = ComputeFieldOfView(origin, profile, env, world)
	s.entities = resolveVisibleEntities(owner, origin, profile, env, world, s.tiles, EffectiveRange(profile, env))
	return s
}
