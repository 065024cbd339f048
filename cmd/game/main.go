package main

import (
	"flag"
	"log"
	"time"

	"github.com/Garsondee/Sentry-Sense/internal/sense"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	var scenarioPath string
	var seed int64
	var verbose bool

	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML path (empty = builtin watchtower)")
	flag.Int64Var(&seed, "seed", 0, "RNG seed for wandering entities (0 = time-based)")
	flag.BoolVar(&verbose, "verbose", false, "record verbose simulation log entries")
	flag.Parse()

	sc := sense.DefaultScenario()
	if scenarioPath != "" {
		loaded, err := sense.LoadScenario(scenarioPath)
		if err != nil {
			log.Fatalf("load scenario: %v", err)
		}
		sc = loaded
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := sense.NewSenseSimFromScenario(sc, seed, verbose)
	if err != nil {
		log.Fatalf("build simulation: %v", err)
	}

	g := sense.NewGame(sim)
	w, h := g.Layout(0, 0)
	ebiten.SetWindowTitle("Sentry Sense")
	ebiten.SetWindowSize(w, h)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
