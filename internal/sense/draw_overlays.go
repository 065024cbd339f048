package sense

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// drawFOVOverlay washes visible tiles in the observer's colour, alpha scaled
// by the visibility factor so occlusion falloff is readable at a glance.
func (g *Game) drawFOVOverlay(screen *ebiten.Image, obs *SimObserver) {
	if obs == nil {
		return
	}
	vs := g.sim.Scheduler.State(obs.ID)
	if !vs.Valid() {
		return
	}

	origin := TileOf(obs.Pos)
	for y := 0; y < g.mapH; y++ {
		for x := 0; x < g.mapW; x++ {
			c := TileCoordinate{X: x, Y: y, Z: origin.Z}
			f := vs.TileVisibility(c)
			if f <= 0 {
				continue
			}
			sx, sy := g.tileScreen(x, y)
			a := uint8(30 + 90*f)
			vector.FillRect(screen, sx, sy, tilePixels, tilePixels,
				color.RGBA{R: 240, G: 220, B: 90, A: a}, false)
		}
	}

	// Investigation point marker: a small cross where the observer is headed.
	if obs.Behavior.State() == StateInvestigating {
		p := obs.Behavior.InvestigationPoint()
		sx, sy := g.tileScreen(int(p.X), int(p.Y))
		cx := sx + tilePixels/2
		cy := sy + tilePixels/2
		c := color.RGBA{R: 255, G: 160, B: 40, A: 220}
		vector.StrokeLine(screen, cx-6, cy, cx+6, cy, 1.5, c, false)
		vector.StrokeLine(screen, cx, cy-6, cx, cy+6, 1.5, c, false)
	}
}

// classColors maps a target classification to its marker colour.
func classColor(c TargetClass) color.RGBA {
	switch c {
	case ClassPrey:
		return color.RGBA{R: 240, G: 210, B: 70, A: 255}
	case ClassPredator:
		return color.RGBA{R: 220, G: 60, B: 50, A: 255}
	case ClassAlly:
		return color.RGBA{R: 60, G: 160, B: 240, A: 255}
	default:
		return color.RGBA{R: 160, G: 160, B: 160, A: 255}
	}
}

// stateColors maps a perception state to the observer ring colour.
func stateColor(s PerceptionState) color.RGBA {
	switch s {
	case StateAlert:
		return color.RGBA{R: 240, G: 200, B: 60, A: 255}
	case StatePursuing:
		return color.RGBA{R: 230, G: 70, B: 50, A: 255}
	case StateFleeing:
		return color.RGBA{R: 120, G: 80, B: 230, A: 255}
	case StateInvestigating:
		return color.RGBA{R: 250, G: 150, B: 40, A: 255}
	case StateHiding:
		return color.RGBA{R: 90, G: 90, B: 100, A: 255}
	default:
		return color.RGBA{R: 90, G: 190, B: 90, A: 255}
	}
}

// drawEntities renders non-observer entities as small class-coloured dots.
func (g *Game) drawEntities(screen *ebiten.Image) {
	for _, e := range g.sim.World.Entities() {
		if g.sim.Observer(e.ID) != nil {
			continue
		}
		sx := float32(g.offX) + float32(e.Pos.X)*tilePixels + tilePixels/2
		sy := float32(g.offY) + float32(e.Pos.Y)*tilePixels + tilePixels/2
		c := classColor(g.sim.classes[e.ID])
		vector.FillCircle(screen, sx, sy, 5, c, false)
		vector.StrokeCircle(screen, sx, sy, 5, 1.0, color.RGBA{R: 20, G: 20, B: 20, A: 200}, false)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", e.ID), int(sx)+7, int(sy)-7)
	}
}

// drawObservers renders each observer with a state-coloured ring, its look
// direction, and whether it currently sees any entities.
func (g *Game) drawObservers(screen *ebiten.Image) {
	for i, o := range g.sim.Observers {
		sx := float32(g.offX) + float32(o.Pos.X)*tilePixels + tilePixels/2
		sy := float32(g.offY) + float32(o.Pos.Y)*tilePixels + tilePixels/2

		body := color.RGBA{R: 70, G: 130, B: 200, A: 255}
		vector.FillCircle(screen, sx, sy, 7, body, false)
		vector.StrokeCircle(screen, sx, sy, 9, 2.0, stateColor(o.Behavior.State()), false)

		// Look direction indicator.
		look := o.Profile.LookDirection
		ang := math.Atan2(look.Y, look.X)
		ex := sx + 14*float32(math.Cos(ang))
		ey := sy + 14*float32(math.Sin(ang))
		vector.StrokeLine(screen, sx, sy, ex, ey, 2.0, color.RGBA{R: 220, G: 220, B: 220, A: 200}, false)

		// Selection marker.
		if i == g.selected {
			vector.StrokeCircle(screen, sx, sy, 12, 1.0, color.RGBA{R: 255, G: 240, B: 60, A: 220}, false)
		}

		ebitenutil.DebugPrintAt(screen, o.Label, int(sx)+10, int(sy)+6)
	}
}

// drawHUD renders the observer status panel to the right of the map.
func (g *Game) drawHUD(screen *ebiten.Image) {
	px := g.offX + g.mapW*tilePixels + borderWidth
	py := g.offY

	vector.FillRect(screen, float32(px)-6, float32(py)-6,
		hudPanelWidth-borderWidth, float32(g.height-2*borderWidth)+12,
		color.RGBA{R: 6, G: 10, B: 6, A: 210}, false)

	speedStr := fmt.Sprintf("%.1fx", g.simSpeed)
	if g.simSpeed == 0 {
		speedStr = "PAUSED"
	}

	lines := []string{
		fmt.Sprintf("tick %d  %s", g.sim.Tick, speedStr),
		fmt.Sprintf("time %.2f  light %.2f  weather %.2f",
			g.sim.Env.TimeOfDay, g.sim.Env.LightLevel(), g.sim.Env.WeatherAttenuation()),
		"",
	}

	if o := g.selectedObserver(); o != nil {
		vs := g.sim.Scheduler.State(o.ID)
		lines = append(lines,
			fmt.Sprintf("observer %s  (Tab to cycle)", o.Label),
			fmt.Sprintf("state: %s", o.Behavior.State()),
			fmt.Sprintf("range: %.1f of %.1f", EffectiveRange(o.Profile, g.sim.Env), o.Profile.BaseRangeMeters),
			fmt.Sprintf("tiles: %d  entities: %d", vs.VisibleTileCount(), vs.VisibleEntityCount()),
		)
		if t, ok := o.Behavior.CurrentTarget(); ok {
			lines = append(lines, fmt.Sprintf("target: %d (%s) threat %.2f", t.EntityID, t.Class, t.ThreatLevel))
		} else {
			lines = append(lines, "target: none")
		}
		if o.Behavior.State() == StateInvestigating {
			p := o.Behavior.InvestigationPoint()
			lines = append(lines, fmt.Sprintf("investigating (%.0f,%.0f)", p.X, p.Y))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		fmt.Sprintf("queries discarded: %d", g.sim.Scheduler.Discarded()),
		"",
		"P pause  N step  ,/. speed",
		"F fov  H hud  T time  G fog",
		"C copy debug report",
	)

	for i, l := range lines {
		ebitenutil.DebugPrintAt(screen, l, px, py+i*14)
	}
}
