// Package config holds the tunable constants of a simulation run and their
// YAML representation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/leo-transcode-sim/core"
	"github.com/signalsfoundry/leo-transcode-sim/internal/demand"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full run configuration.
type Config struct {
	Grid         GridConfig       `yaml:"grid"`
	SourceRegion int              `yaml:"source_region"`
	Bitrates     []BitrateConfig  `yaml:"bitrates"`
	Delay        DelayConfig      `yaml:"delay"`
	Energy       EnergyConfig     `yaml:"energy"`
	Battery      BatteryConfig    `yaml:"battery"`
	Predictor    PredictorConfig  `yaml:"predictor"`
	Scorer       ScorerConfig     `yaml:"scorer"`
	Reward       RewardConfig     `yaml:"reward"`
	Demand       DemandConfig     `yaml:"demand"`
	Simulation   SimulationConfig `yaml:"simulation"`
}

type GridConfig struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// BitrateConfig describes one rendition. TransmissionDelay is derived from
// the chunk size when zero.
type BitrateConfig struct {
	Mbps              float64 `yaml:"mbps"`
	TranscodeDelay    float64 `yaml:"transcode_delay"`
	TranscodeEnergy   float64 `yaml:"transcode_energy"`
	TransmissionDelay float64 `yaml:"transmission_delay,omitempty"`
}

type DelayConfig struct {
	Activation          float64 `yaml:"activation"`
	Scheduling          float64 `yaml:"scheduling"`
	PropagationPerHop   float64 `yaml:"propagation_per_hop"`
	ChunkBits           float64 `yaml:"chunk_bits"`
	DefaultTranscode    float64 `yaml:"default_transcode"`
	DefaultTransmission float64 `yaml:"default_transmission"`
}

type EnergyConfig struct {
	RelayPerHop      float64 `yaml:"relay_per_hop"`
	DefaultTranscode float64 `yaml:"default_transcode"`
}

type BatteryConfig struct {
	Max float64 `yaml:"max"`
	Min float64 `yaml:"min"`
}

type PredictorConfig struct {
	Window       int     `yaml:"window"`
	LearningRate float64 `yaml:"learning_rate"`
}

type ScorerConfig struct {
	Epsilon float64 `yaml:"epsilon"`
	Alpha   float64 `yaml:"alpha"`
	Gamma   float64 `yaml:"gamma"`
	Seed    uint64  `yaml:"seed"`
}

type RewardConfig struct {
	Delay  float64 `yaml:"delay"`
	Energy float64 `yaml:"energy"`
}

// DemandConfig drives the random walk that extends slot-1 demand.
type DemandConfig struct {
	Noise  string  `yaml:"noise"`
	Step   int     `yaml:"step"`
	Lambda float64 `yaml:"lambda"`
	Seed   uint64  `yaml:"seed"`
}

type SimulationConfig struct {
	Slots           int  `yaml:"slots"`
	Learning        bool `yaml:"learning"`
	AbortOnCapacity bool `yaml:"abort_on_capacity"`
}

// Default returns the reference configuration.
func Default() Config {
	cost := core.DefaultCostParams()
	bitrates := make([]BitrateConfig, 0, len(core.StandardBitrates))
	for _, b := range core.StandardBitrates {
		bitrates = append(bitrates, BitrateConfig{
			Mbps:            b.Mbps(),
			TranscodeDelay:  cost.TranscodeDelay[b],
			TranscodeEnergy: cost.TranscodeEnergy[b],
		})
	}
	scorer := core.DefaultScorerConfig()
	reward := core.DefaultRewardWeights()
	gen := demand.DefaultGeneratorConfig()

	return Config{
		Grid:         GridConfig{Rows: 5, Cols: 6},
		SourceRegion: 1,
		Bitrates:     bitrates,
		Delay: DelayConfig{
			Activation:          cost.ActivationDelay,
			Scheduling:          cost.SchedulingDelay,
			PropagationPerHop:   cost.PropagationDelayPerHop,
			ChunkBits:           core.ChunkBits,
			DefaultTranscode:    cost.DefaultTranscodeDelay,
			DefaultTransmission: cost.DefaultTransmissionDelay,
		},
		Energy: EnergyConfig{
			RelayPerHop:      cost.RelayEnergyPerHop,
			DefaultTranscode: cost.DefaultTranscodeEnergy,
		},
		Battery:   BatteryConfig{Max: 5000, Min: 100},
		Predictor: PredictorConfig{Window: 3, LearningRate: 0.1},
		Scorer: ScorerConfig{
			Epsilon: scorer.Epsilon,
			Alpha:   scorer.Alpha,
			Gamma:   scorer.Gamma,
			Seed:    scorer.Seed,
		},
		Reward: RewardConfig{Delay: reward.Delay, Energy: reward.Energy},
		Demand: DemandConfig{
			Noise:  string(gen.Noise),
			Step:   gen.Step,
			Lambda: gen.Lambda,
			Seed:   gen.Seed,
		},
		Simulation: SimulationConfig{Slots: 5},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, rejecting unknown fields. An empty
// document yields the defaults. A bitrates list replaces the default ladder.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Grid.Rows > 0 && c.Grid.Cols > 0, "grid %dx%d must be positive", c.Grid.Rows, c.Grid.Cols)
	check(c.SourceRegion >= 1 && c.SourceRegion <= c.Grid.Rows*c.Grid.Cols,
		"source_region %d outside [1, %d]", c.SourceRegion, c.Grid.Rows*c.Grid.Cols)

	check(len(c.Bitrates) > 0, "at least one bitrate is required")
	seen := make(map[float64]bool, len(c.Bitrates))
	for _, b := range c.Bitrates {
		check(b.Mbps > 0, "bitrate %v must be positive", b.Mbps)
		check(!seen[b.Mbps], "bitrate %v listed twice", b.Mbps)
		check(b.TranscodeDelay >= 0 && b.TranscodeEnergy >= 0 && b.TransmissionDelay >= 0,
			"bitrate %v has negative costs", b.Mbps)
		seen[b.Mbps] = true
	}

	d := c.Delay
	check(d.Activation >= 0 && d.Scheduling >= 0 && d.PropagationPerHop >= 0 &&
		d.DefaultTranscode >= 0 && d.DefaultTransmission >= 0, "delays must not be negative")
	check(d.ChunkBits > 0, "delay.chunk_bits %v must be positive", d.ChunkBits)
	check(c.Energy.RelayPerHop >= 0 && c.Energy.DefaultTranscode >= 0, "energies must not be negative")
	check(c.Battery.Min >= 0 && c.Battery.Max > c.Battery.Min,
		"battery max %v must exceed min %v >= 0", c.Battery.Max, c.Battery.Min)

	check(c.Predictor.Window >= 1, "predictor.window %d must be at least 1", c.Predictor.Window)
	check(c.Predictor.LearningRate >= 0, "predictor.learning_rate must not be negative")
	check(c.Scorer.Epsilon >= 0 && c.Scorer.Epsilon <= 1, "scorer.epsilon %v outside [0, 1]", c.Scorer.Epsilon)
	check(c.Scorer.Alpha > 0, "scorer.alpha %v must be positive", c.Scorer.Alpha)
	check(c.Scorer.Gamma >= 0 && c.Scorer.Gamma <= 1, "scorer.gamma %v outside [0, 1]", c.Scorer.Gamma)

	switch demand.Noise(c.Demand.Noise) {
	case demand.NoiseUniform:
		check(c.Demand.Step >= 0, "demand.step %d must not be negative", c.Demand.Step)
	case demand.NoisePoisson:
		check(c.Demand.Lambda > 0, "demand.lambda %v must be positive", c.Demand.Lambda)
	default:
		check(false, "demand.noise %q must be uniform or poisson", c.Demand.Noise)
	}
	check(c.Simulation.Slots >= 1, "simulation.slots %d must be at least 1", c.Simulation.Slots)

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

// GridSpec returns the validated grid.
func (c Config) GridSpec() (core.Grid, error) {
	return core.NewGrid(c.Grid.Rows, c.Grid.Cols)
}

// BitrateLadder returns the configured bitrates in ascending order.
func (c Config) BitrateLadder() []model.Bitrate {
	out := make([]model.Bitrate, 0, len(c.Bitrates))
	for _, b := range c.Bitrates {
		out = append(out, model.Bitrate(b.Mbps))
	}
	return model.SortBitrates(out)
}

// CostParams converts the delay and energy sections.
func (c Config) CostParams() core.CostParams {
	p := core.CostParams{
		ActivationDelay:          c.Delay.Activation,
		SchedulingDelay:          c.Delay.Scheduling,
		PropagationDelayPerHop:   c.Delay.PropagationPerHop,
		TransmissionDelayPerHop:  make(map[model.Bitrate]float64, len(c.Bitrates)),
		DefaultTransmissionDelay: c.Delay.DefaultTransmission,
		TranscodeDelay:           make(map[model.Bitrate]float64, len(c.Bitrates)),
		DefaultTranscodeDelay:    c.Delay.DefaultTranscode,
		TranscodeEnergy:          make(map[model.Bitrate]float64, len(c.Bitrates)),
		DefaultTranscodeEnergy:   c.Energy.DefaultTranscode,
		RelayEnergyPerHop:        c.Energy.RelayPerHop,
	}
	for _, bc := range c.Bitrates {
		b := model.Bitrate(bc.Mbps)
		tx := bc.TransmissionDelay
		if tx == 0 {
			tx = c.Delay.ChunkBits / (bc.Mbps * 1e6)
		}
		p.TransmissionDelayPerHop[b] = tx
		p.TranscodeDelay[b] = bc.TranscodeDelay
		p.TranscodeEnergy[b] = bc.TranscodeEnergy
	}
	return p
}

// EngineConfig converts the sections consumed by core.SimulationEngine.
func (c Config) EngineConfig() core.EngineConfig {
	return core.EngineConfig{
		SourceRegion: c.SourceRegion,
		Cost:         c.CostParams(),
		Scorer: core.ScorerConfig{
			Dim:     core.FeatureDim,
			Epsilon: c.Scorer.Epsilon,
			Alpha:   c.Scorer.Alpha,
			Gamma:   c.Scorer.Gamma,
			Seed:    c.Scorer.Seed,
		},
		PredictorWindow:       c.Predictor.Window,
		PredictorLearningRate: c.Predictor.LearningRate,
		Learning:              c.Simulation.Learning,
		Rewards:               core.RewardWeights{Delay: c.Reward.Delay, Energy: c.Reward.Energy},
	}
}

// NetworkOptions returns the node network options implied by the config.
func (c Config) NetworkOptions() []core.NetworkOption {
	return []core.NetworkOption{core.WithBattery(c.Battery.Max, c.Battery.Min)}
}

// GeneratorConfig converts the demand section.
func (c Config) GeneratorConfig() demand.GeneratorConfig {
	return demand.GeneratorConfig{
		Noise:  demand.Noise(c.Demand.Noise),
		Step:   c.Demand.Step,
		Lambda: c.Demand.Lambda,
		Seed:   c.Demand.Seed,
	}
}
