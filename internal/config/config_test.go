package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/leo-transcode-sim/core"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	g, err := cfg.GridSpec()
	if err != nil || g.Regions() != 30 {
		t.Fatalf("GridSpec = %+v, %v", g, err)
	}
	ladder := cfg.BitrateLadder()
	if len(ladder) != 4 || ladder[0] != 0.75 || ladder[3] != 2.85 {
		t.Fatalf("ladder = %v", ladder)
	}
}

func TestCostParamsMatchCoreDefaults(t *testing.T) {
	got := Default().CostParams()
	want := core.DefaultCostParams()

	for _, b := range core.StandardBitrates {
		if math.Abs(got.TransmissionDelayPerHop[b]-want.TransmissionDelayPerHop[b]) > 1e-12 {
			t.Fatalf("transmission delay %s = %v, want %v", b, got.TransmissionDelayPerHop[b], want.TransmissionDelayPerHop[b])
		}
		if got.TranscodeDelay[b] != want.TranscodeDelay[b] || got.TranscodeEnergy[b] != want.TranscodeEnergy[b] {
			t.Fatalf("transcode costs for %s differ", b)
		}
	}
	if got.ActivationDelay != want.ActivationDelay || got.RelayEnergyPerHop != want.RelayEnergyPerHop {
		t.Fatalf("scalar costs differ: %+v", got)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	in := `
grid:
  rows: 4
  cols: 4
source_region: 16
scorer:
  epsilon: 0
simulation:
  slots: 12
  learning: true
`
	cfg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Grid.Rows != 4 || cfg.SourceRegion != 16 || cfg.Simulation.Slots != 12 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Scorer.Epsilon != 0 || cfg.Scorer.Alpha != 0.05 {
		t.Fatalf("scorer = %+v", cfg.Scorer)
	}
	if len(cfg.Bitrates) != 4 || cfg.Battery.Max != 5000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	ec := cfg.EngineConfig()
	if !ec.Learning || ec.SourceRegion != 16 || ec.Scorer.Dim != core.FeatureDim {
		t.Fatalf("engine config = %+v", ec)
	}
}

func TestParseReplacesBitrateLadder(t *testing.T) {
	in := `
bitrates:
  - mbps: 1.0
    transcode_delay: 0.2
    transcode_energy: 10
    transmission_delay: 0.5
  - mbps: 4.0
    transcode_delay: 0.1
    transcode_energy: 4
`
	cfg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := cfg.CostParams()
	if len(p.TranscodeDelay) != 2 {
		t.Fatalf("ladder not replaced: %v", p.TranscodeDelay)
	}
	if p.TransmissionDelayPerHop[model.Bitrate(1.0)] != 0.5 {
		t.Fatalf("explicit transmission delay ignored")
	}
	if got := p.TransmissionDelayPerHop[model.Bitrate(4.0)]; math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("derived transmission delay = %v, want 2e6/4e6", got)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Simulation.Slots != Default().Simulation.Slots {
		t.Fatalf("empty document changed defaults")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("grid:\n  rows: 5\n  depth: 3\n"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Parse error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero grid":      func(c *Config) { c.Grid.Rows = 0 },
		"source outside": func(c *Config) { c.SourceRegion = 31 },
		"no bitrates":    func(c *Config) { c.Bitrates = nil },
		"duplicate":      func(c *Config) { c.Bitrates = append(c.Bitrates, c.Bitrates[0]) },
		"battery":        func(c *Config) { c.Battery.Min = c.Battery.Max },
		"window":         func(c *Config) { c.Predictor.Window = 0 },
		"epsilon":        func(c *Config) { c.Scorer.Epsilon = 1.5 },
		"gamma":          func(c *Config) { c.Scorer.Gamma = -0.1 },
		"noise":          func(c *Config) { c.Demand.Noise = "gaussian" },
		"poisson lambda": func(c *Config) {
			c.Demand.Noise = "poisson"
			c.Demand.Lambda = 0
		},
		"slots":           func(c *Config) { c.Simulation.Slots = 0 },
		"negative delay":  func(c *Config) { c.Delay.Activation = -1 },
		"zero chunk size": func(c *Config) { c.Delay.ChunkBits = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: Validate error = %v, want ErrInvalidConfig", name, err)
		}
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Grid.Cols = 0
	cfg.Simulation.Slots = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "grid") || !strings.Contains(msg, "simulation.slots") {
		t.Fatalf("error does not list every problem: %v", msg)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  slots: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Slots != 3 {
		t.Fatalf("slots = %d, want 3", cfg.Simulation.Slots)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestGeneratorConfig(t *testing.T) {
	g := Default().GeneratorConfig()
	if g.Noise != "uniform" || g.Step != 2 || g.Lambda != 2 {
		t.Fatalf("generator config = %+v", g)
	}
	if opts := Default().NetworkOptions(); len(opts) != 1 {
		t.Fatalf("network options = %d", len(opts))
	}
}
