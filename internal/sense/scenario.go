package sense

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scenario_default.yaml
var defaultScenarioYAML []byte

// Scenario is a declarative simulation setup: a tile map, environmental
// conditions, observers with vision profiles and behavior settings, and
// plain entities to be noticed. Loaded from YAML by the viewer and the
// headless report command.
type Scenario struct {
	Name        string              `yaml:"name"`
	Ticks       int                 `yaml:"ticks"`
	TickSeconds float64             `yaml:"tick_seconds"`
	Environment EnvironmentYAML     `yaml:"environment"`
	Map         MapYAML             `yaml:"map"`
	Observers   []ObserverYAML      `yaml:"observers"`
	Entities    []ScenarioEntity    `yaml:"entities"`
	Legend      map[string]TileYAML `yaml:"legend"`
}

type EnvironmentYAML struct {
	TimeOfDay         float64 `yaml:"time_of_day"`
	AmbientLightLevel float64 `yaml:"ambient_light_level"`
	FogDensity        float64 `yaml:"fog_density"`
	RainIntensity     float64 `yaml:"rain_intensity"`
	SnowIntensity     float64 `yaml:"snow_intensity"`
	DustDensity       float64 `yaml:"dust_density"`
	SmokeDensity      float64 `yaml:"smoke_density"`
	GasDensity        float64 `yaml:"gas_density"`
}

type MapYAML struct {
	Rows []string `yaml:"rows"`
}

// TileYAML lets a scenario extend the builtin map legend.
type TileYAML struct {
	BlocksSight  bool    `yaml:"blocks_sight"`
	Transparency float64 `yaml:"transparency"`
	Height       float64 `yaml:"height"`
	IsFoliage    bool    `yaml:"is_foliage"`
}

type ObserverYAML struct {
	ID       uint32       `yaml:"id"`
	Label    string       `yaml:"label"`
	X        int          `yaml:"x"`
	Y        int          `yaml:"y"`
	Z        int          `yaml:"z"`
	Preset   string       `yaml:"preset"` // default|guard|prey|predator
	Look     LookYAML     `yaml:"look"`
	Range    float64      `yaml:"range"`  // override, meters
	FOV      float64      `yaml:"fov"`    // override, degrees
	Behavior BehaviorYAML `yaml:"behavior"`
}

type LookYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// BehaviorYAML overlays DefaultBehaviorConfig; zero values keep defaults,
// and the can_* switches use pointers so "false" is expressible.
type BehaviorYAML struct {
	DetectionDistance float64 `yaml:"detection_distance"`
	AlertDistance     float64 `yaml:"alert_distance"`
	PursuitDistance   float64 `yaml:"pursuit_distance"`
	FleeDistance      float64 `yaml:"flee_distance"`
	InvestigationTime float64 `yaml:"investigation_time"`
	AlertTimeout      float64 `yaml:"alert_timeout"`
	CanPursue         *bool   `yaml:"can_pursue"`
	CanFlee           *bool   `yaml:"can_flee"`
	CanInvestigate    *bool   `yaml:"can_investigate"`
	PerceptionMult    float64 `yaml:"perception_multiplier"`
}

type ScenarioEntity struct {
	ID     uint32 `yaml:"id"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Z      int    `yaml:"z"`
	Class  string `yaml:"class"` // prey|predator|neutral|ally
	Wander bool   `yaml:"wander"`
}

// DefaultScenario returns the embedded watchtower demo.
func DefaultScenario() Scenario {
	sc, err := parseScenario(defaultScenarioYAML)
	if err != nil {
		// The embedded scenario is validated by tests; failing here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded scenario invalid: %v", err))
	}
	return sc
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := parseScenario(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

func parseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing yaml: %w", err)
	}
	if len(sc.Map.Rows) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no map rows")
	}
	if len(sc.Observers) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no observers")
	}
	if sc.Ticks <= 0 {
		sc.Ticks = 600
	}
	if sc.TickSeconds <= 0 {
		sc.TickSeconds = 0.1
	}
	for i, o := range sc.Observers {
		if o.ID == 0 {
			return Scenario{}, fmt.Errorf("observer %d has no id", i)
		}
	}
	return sc, nil
}

// EnvironmentConditions converts the YAML block to engine conditions.
func (s Scenario) EnvironmentConditions() EnvironmentalConditions {
	e := s.Environment
	return EnvironmentalConditions{
		TimeOfDay:         e.TimeOfDay,
		AmbientLightLevel: e.AmbientLightLevel,
		FogDensity:        e.FogDensity,
		RainIntensity:     e.RainIntensity,
		SnowIntensity:     e.SnowIntensity,
		DustDensity:       e.DustDensity,
		SmokeDensity:      e.SmokeDensity,
		GasDensity:        e.GasDensity,
	}
}

func classFromName(name string) TargetClass {
	switch name {
	case "prey":
		return ClassPrey
	case "predator":
		return ClassPredator
	case "ally":
		return ClassAlly
	default:
		return ClassNeutral
	}
}

func profileFromObserver(o ObserverYAML) VisionProfile {
	var p VisionProfile
	switch o.Preset {
	case "guard":
		p = GuardProfile()
	case "prey":
		p = PreyProfile()
	case "predator":
		p = PredatorProfile()
	default:
		p = DefaultVisionProfile()
	}
	if o.Range > 0 {
		p.BaseRangeMeters = o.Range
	}
	if o.FOV > 0 {
		p.FOVAngleDegrees = o.FOV
	}
	if o.Look.X != 0 || o.Look.Y != 0 {
		p.LookDirection = Vec3{X: o.Look.X, Y: o.Look.Y}
	}
	return NewVisionProfile(p)
}

func behaviorFromYAML(b BehaviorYAML) BehaviorConfig {
	cfg := DefaultBehaviorConfig()
	if b.DetectionDistance > 0 {
		cfg.DetectionDistance = b.DetectionDistance
	}
	if b.AlertDistance > 0 {
		cfg.AlertDistance = b.AlertDistance
	}
	if b.PursuitDistance > 0 {
		cfg.PursuitDistance = b.PursuitDistance
	}
	if b.FleeDistance > 0 {
		cfg.FleeDistance = b.FleeDistance
	}
	if b.InvestigationTime > 0 {
		cfg.InvestigationTime = b.InvestigationTime
	}
	if b.AlertTimeout > 0 {
		cfg.AlertTimeout = b.AlertTimeout
	}
	if b.CanPursue != nil {
		cfg.CanPursue = *b.CanPursue
	}
	if b.CanFlee != nil {
		cfg.CanFlee = *b.CanFlee
	}
	if b.CanInvestigate != nil {
		cfg.CanInvestigate = *b.CanInvestigate
	}
	if b.PerceptionMult > 0 {
		cfg.PerceptionMultiplier = b.PerceptionMult
	}
	return cfg
}

// legendFor merges scenario legend extensions over the builtin runes.
func (s Scenario) legendFor() (map[rune]OcclusionProperties, error) {
	merged := make(map[rune]OcclusionProperties, len(defaultLegend)+len(s.Legend))
	for r, occ := range defaultLegend {
		merged[r] = occ
	}
	for key, t := range s.Legend {
		runes := []rune(key)
		if len(runes) != 1 {
			return nil, fmt.Errorf("legend key %q must be a single rune", key)
		}
		merged[runes[0]] = OcclusionProperties{
			BlocksSight:  t.BlocksSight,
			Transparency: t.Transparency,
			Height:       t.Height,
			IsFoliage:    t.IsFoliage,
		}
	}
	return merged, nil
}
