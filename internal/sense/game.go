package sense

import (
	"fmt"
	"image/color"
	"math"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// tilePixels is the on-screen size of one world tile.
const tilePixels = 28

// borderWidth is the pixel gap between the window edge and the map.
const borderWidth = 24

// hudPanelWidth is the fixed-width text panel to the right of the map.
const hudPanelWidth = 340

// Game is the interactive scenario viewer. It wraps a SenseSim and renders
// the map, the selected observer's field of view, and a behavior HUD.
type Game struct {
	sim *SenseSim

	width  int
	height int
	mapW   int // tiles
	mapH   int // tiles
	offX   int
	offY   int

	selected int // index into sim.Observers

	showFOV bool
	showHUD bool

	// Simulation speed control.
	simSpeed  float64 // multiplier: 0=paused, 0.5, 1, 2, 4
	tickAccum float64

	prevKeys map[ebiten.Key]bool

	// Transient status line (e.g. "report copied"), cleared after a few frames.
	status      string
	statusUntil int
	frame       int
}

// NewGame wraps a simulation in the viewer. The sim's map must already be
// loaded; the window is sized from it.
func NewGame(sim *SenseSim) *Game {
	g := &Game{
		sim:      sim,
		mapW:     sim.mapW,
		mapH:     sim.mapH,
		offX:     borderWidth,
		offY:     borderWidth,
		showFOV:  true,
		showHUD:  true,
		simSpeed: 1.0,
		prevKeys: make(map[ebiten.Key]bool),
	}
	g.width = borderWidth*2 + g.mapW*tilePixels + hudPanelWidth
	g.height = borderWidth*2 + g.mapH*tilePixels
	if g.height < 420 {
		g.height = 420
	}
	return g
}

func (g *Game) Update() error {
	g.frame++
	g.handleInput()

	if g.simSpeed <= 0 {
		return nil
	}
	g.tickAccum += g.simSpeed
	for g.tickAccum >= 1.0 {
		g.tickAccum -= 1.0
		g.sim.Step()
	}
	return nil
}

// pressed reports an edge-triggered keypress.
func (g *Game) pressed(key ebiten.Key, current map[ebiten.Key]bool) bool {
	current[key] = ebiten.IsKeyPressed(key)
	return current[key] && !g.prevKeys[key]
}

func (g *Game) handleInput() {
	currentKeys := map[ebiten.Key]bool{}

	// P: pause/resume. N: single step while paused.
	if g.pressed(ebiten.KeyP, currentKeys) {
		if g.simSpeed > 0 {
			g.simSpeed = 0
		} else {
			g.simSpeed = 1
		}
	}
	if g.pressed(ebiten.KeyN, currentKeys) && g.simSpeed <= 0 {
		g.sim.Step()
	}

	// ,/.: slower/faster.
	speeds := []float64{0, 0.5, 1, 2, 4}
	if g.pressed(ebiten.KeyComma, currentKeys) {
		for i, s := range speeds {
			if s >= g.simSpeed && i > 0 {
				g.simSpeed = speeds[i-1]
				break
			}
		}
	}
	if g.pressed(ebiten.KeyPeriod, currentKeys) {
		for i, s := range speeds {
			if s <= g.simSpeed && i < len(speeds)-1 {
				if speeds[i+1] > g.simSpeed {
					g.simSpeed = speeds[i+1]
					break
				}
			}
		}
	}

	// Tab: cycle the selected observer.
	if g.pressed(ebiten.KeyTab, currentKeys) && len(g.sim.Observers) > 0 {
		g.selected = (g.selected + 1) % len(g.sim.Observers)
	}

	// F: field-of-view overlay. H: HUD panel.
	if g.pressed(ebiten.KeyF, currentKeys) {
		g.showFOV = !g.showFOV
	}
	if g.pressed(ebiten.KeyH, currentKeys) {
		g.showHUD = !g.showHUD
	}

	// T: advance time of day by a quarter cycle.
	if g.pressed(ebiten.KeyT, currentKeys) {
		g.sim.Env.TimeOfDay = math.Mod(g.sim.Env.TimeOfDay+0.25, 1.0)
		g.setStatus(fmt.Sprintf("time of day -> %.2f", g.sim.Env.TimeOfDay))
	}

	// G: toggle a fog bank on and off.
	if g.pressed(ebiten.KeyG, currentKeys) {
		if g.sim.Env.FogDensity > 0 {
			g.sim.Env.FogDensity = 0
		} else {
			g.sim.Env.FogDensity = 0.5
		}
		g.setStatus(fmt.Sprintf("fog density -> %.1f", g.sim.Env.FogDensity))
	}

	// C: copy a debug report for the selected observer to the clipboard.
	if g.pressed(ebiten.KeyC, currentKeys) {
		report := g.observerDebugReport(g.selectedObserver(), 200)
		if err := clipboard.WriteAll(report); err != nil {
			g.setStatus(fmt.Sprintf("clipboard error: %v", err))
		} else {
			g.setStatus("debug report copied")
		}
	}

	g.prevKeys = currentKeys
}

func (g *Game) setStatus(s string) {
	g.status = s
	g.statusUntil = g.frame + 180
}

func (g *Game) selectedObserver() *SimObserver {
	if len(g.sim.Observers) == 0 {
		return nil
	}
	if g.selected >= len(g.sim.Observers) {
		g.selected = 0
	}
	return g.sim.Observers[g.selected]
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 12, G: 14, B: 12, A: 255})

	g.drawTiles(screen)
	if g.showFOV {
		g.drawFOVOverlay(screen, g.selectedObserver())
	}
	g.drawEntities(screen)
	g.drawObservers(screen)

	// Map border frame.
	ox := float32(g.offX)
	oy := float32(g.offY)
	mw := float32(g.mapW * tilePixels)
	mh := float32(g.mapH * tilePixels)
	vector.StrokeRect(screen, ox-1, oy-1, mw+2, mh+2, 2.0, color.RGBA{R: 65, G: 90, B: 65, A: 255}, false)

	if g.showHUD {
		g.drawHUD(screen)
	}

	if g.status != "" && g.frame < g.statusUntil {
		ebitenutil.DebugPrintAt(screen, g.status, g.offX+4, g.height-16)
	}
}

// tileScreen converts a tile coordinate to its top-left pixel position.
func (g *Game) tileScreen(x, y int) (float32, float32) {
	return float32(g.offX + x*tilePixels), float32(g.offY + y*tilePixels)
}

// drawTiles renders the z=0 plane. Colour comes from the occlusion profile
// rather than the legend rune, so scenario legend extensions render too.
func (g *Game) drawTiles(screen *ebiten.Image) {
	floor := color.RGBA{R: 28, G: 42, B: 28, A: 255}
	grid := color.RGBA{R: 36, G: 52, B: 36, A: 255}

	for y := 0; y < g.mapH; y++ {
		for x := 0; x < g.mapW; x++ {
			sx, sy := g.tileScreen(x, y)
			vector.FillRect(screen, sx, sy, tilePixels, tilePixels, floor, false)
			vector.StrokeRect(screen, sx, sy, tilePixels, tilePixels, 0.5, grid, false)

			occ, ok := g.sim.World.Occlusion(TileCoordinate{X: x, Y: y})
			if !ok || occ == airOcclusion {
				continue
			}
			vector.FillRect(screen, sx+1, sy+1, tilePixels-2, tilePixels-2, tileColor(occ), false)
		}
	}
}

// tileColor picks a render colour from occlusion properties.
func tileColor(occ OcclusionProperties) color.RGBA {
	switch {
	case occ.IsFoliage:
		return color.RGBA{R: 30, G: 95, B: 35, A: 255}
	case occ.BlocksSight && occ.Height >= 2:
		return color.RGBA{R: 85, G: 80, B: 68, A: 255} // full wall
	case occ.BlocksSight:
		return color.RGBA{R: 120, G: 112, B: 92, A: 255} // low wall
	case occ.Transparency > 0 && occ.Transparency < 1:
		return color.RGBA{R: 55, G: 70, B: 100, A: 255} // window glass
	default:
		return color.RGBA{R: 45, G: 55, B: 45, A: 255}
	}
}

func (g *Game) Layout(_, _ int) (int, int) {
	return g.width, g.height
}
