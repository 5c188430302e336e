package demand

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// Noise selects the per-step fluctuation of the demand random walk.
type Noise string

const (
	// NoiseUniform draws an integer step uniformly from [-Step, Step].
	NoiseUniform Noise = "uniform"
	// NoisePoisson draws Poisson(Lambda) - floor(Lambda), centred near zero.
	NoisePoisson Noise = "poisson"
)

// GeneratorConfig parameterises a Generator.
type GeneratorConfig struct {
	Noise  Noise
	Step   int
	Lambda float64
	Seed   uint64
}

// DefaultGeneratorConfig matches the reference walk: uniform steps in [-2, 2].
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Noise: NoiseUniform, Step: 2, Lambda: 2, Seed: 1}
}

// Generator extends a demand table slot by slot with a clamped random walk.
// It is deterministic for a given seed.
type Generator struct {
	cfg     GeneratorConfig
	rng     *rand.Rand
	poisson distuv.Poisson
}

// NewGenerator validates cfg and returns a seeded generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	switch cfg.Noise {
	case "":
		cfg.Noise = NoiseUniform
	case NoiseUniform, NoisePoisson:
	default:
		return nil, fmt.Errorf("unknown demand noise %q", cfg.Noise)
	}
	if cfg.Step < 0 {
		return nil, fmt.Errorf("demand step %d must not be negative", cfg.Step)
	}
	if cfg.Noise == NoisePoisson && cfg.Lambda <= 0 {
		return nil, fmt.Errorf("poisson lambda %v must be positive", cfg.Lambda)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0xda942042e4dd58b5)
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(src),
		poisson: distuv.Poisson{Lambda: cfg.Lambda, Src: src},
	}, nil
}

// Delta draws one step of the walk.
func (g *Generator) Delta() float64 {
	if g.cfg.Noise == NoisePoisson {
		return g.poisson.Rand() - math.Floor(g.cfg.Lambda)
	}
	return float64(g.rng.IntN(2*g.cfg.Step+1) - g.cfg.Step)
}

// Extend fills every slot in [2, slots] missing from s, for regions 1..regions
// and every bitrate, as max(0, previous slot + Delta()). Slots already present
// are kept and seed the walk of the following slots.
func (g *Generator) Extend(s model.DemandSeries, slots, regions int, bitrates []model.Bitrate) {
	for t := 2; t <= slots; t++ {
		if _, ok := s[t]; ok {
			continue
		}
		for r := 1; r <= regions; r++ {
			for _, b := range bitrates {
				v := s.Get(t-1, r, b) + g.Delta()
				s.Set(t, r, b, math.Max(0, v))
			}
		}
	}
}
