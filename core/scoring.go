package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// FeatureDim is the length of an activation feature vector.
const FeatureDim = 5

// Action names a decision context with its own weight vector.
type Action int

// ActionActivate scores which path node activates for a region.
const ActionActivate Action = 0

// ScorerConfig parameterises a LinearScorer.
type ScorerConfig struct {
	Dim     int
	Epsilon float64 // exploration probability
	Alpha   float64 // learning rate
	Gamma   float64 // discount factor
	Seed    uint64
}

// DefaultScorerConfig matches the reference activation model.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{Dim: FeatureDim, Epsilon: 0.1, Alpha: 0.05, Gamma: 0.9, Seed: 1}
}

// Candidate is a scored option: a node and its feature vector.
type Candidate struct {
	Node     int
	Features []float64
}

// LinearScorer is a linear action-value model: score = w_a . x. Weights are
// owned per action and start at zero.
type LinearScorer struct {
	cfg     ScorerConfig
	weights map[Action][]float64
	rng     *rand.Rand
}

// NewLinearScorer builds a scorer with a seeded exploration source.
func NewLinearScorer(cfg ScorerConfig) *LinearScorer {
	if cfg.Dim <= 0 {
		cfg.Dim = FeatureDim
	}
	return &LinearScorer{
		cfg:     cfg,
		weights: make(map[Action][]float64),
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the scorer parameters.
func (s *LinearScorer) Config() ScorerConfig { return s.cfg }

func (s *LinearScorer) ensure(a Action) []float64 {
	w, ok := s.weights[a]
	if !ok {
		w = make([]float64, s.cfg.Dim)
		s.weights[a] = w
	}
	return w
}

// Weights returns a copy of the weight vector of a.
func (s *LinearScorer) Weights(a Action) []float64 {
	return append([]float64(nil), s.ensure(a)...)
}

// SetWeights replaces the weight vector of a.
func (s *LinearScorer) SetWeights(a Action, w []float64) error {
	if len(w) != s.cfg.Dim {
		return fmt.Errorf("weights for action %d: got %d values, want %d", a, len(w), s.cfg.Dim)
	}
	s.weights[a] = append([]float64(nil), w...)
	return nil
}

// Score returns w_a . state.
func (s *LinearScorer) Score(state []float64, a Action) (float64, error) {
	if len(state) != s.cfg.Dim {
		return 0, fmt.Errorf("state has %d features, want %d", len(state), s.cfg.Dim)
	}
	return floats.Dot(s.ensure(a), state), nil
}

// SelectBest returns the candidate with the highest activation score. On
// exact ties the earliest candidate wins. ok is false for an empty input.
func (s *LinearScorer) SelectBest(candidates []Candidate) (best Candidate, ok bool, err error) {
	bestScore := math.Inf(-1)
	for _, c := range candidates {
		score, err := s.Score(c.Features, ActionActivate)
		if err != nil {
			return Candidate{}, false, fmt.Errorf("node %d: %w", c.Node, err)
		}
		if !ok || score > bestScore {
			best, bestScore, ok = c, score, true
		}
	}
	return best, ok, nil
}

// Explore returns a uniformly random candidate with probability Epsilon and
// the best-scoring one otherwise.
func (s *LinearScorer) Explore(candidates []Candidate) (Candidate, bool, error) {
	if len(candidates) > 0 && s.rng.Float64() < s.cfg.Epsilon {
		return candidates[s.rng.IntN(len(candidates))], true, nil
	}
	return s.SelectBest(candidates)
}

// SelectAction picks among actions epsilon-greedily for one state.
func (s *LinearScorer) SelectAction(state []float64, actions []Action) (Action, error) {
	if len(actions) == 0 {
		return 0, fmt.Errorf("no actions to select from")
	}
	if s.rng.Float64() < s.cfg.Epsilon {
		return actions[s.rng.IntN(len(actions))], nil
	}
	best, bestScore := actions[0], math.Inf(-1)
	for _, a := range actions {
		score, err := s.Score(state, a)
		if err != nil {
			return 0, err
		}
		if score > bestScore {
			best, bestScore = a, score
		}
	}
	return best, nil
}

// Update applies one TD(0) step to the weights of a:
//
//	target = reward                              if nextActions is empty
//	target = reward + gamma * max_b w_b . next   otherwise
//	w_a   += alpha * (target - w_a . state) * state
//
// It returns the TD error.
func (s *LinearScorer) Update(state []float64, a Action, reward float64, next []float64, nextActions []Action) (float64, error) {
	current, err := s.Score(state, a)
	if err != nil {
		return 0, err
	}
	target := reward
	if len(nextActions) > 0 {
		bestNext := math.Inf(-1)
		for _, b := range nextActions {
			score, err := s.Score(next, b)
			if err != nil {
				return 0, err
			}
			bestNext = math.Max(bestNext, score)
		}
		target += s.cfg.Gamma * bestNext
	}
	tdErr := target - current
	floats.AddScaled(s.ensure(a), s.cfg.Alpha*tdErr, state)
	return tdErr, nil
}

// RewardWeights turn a region outcome into a scalar reward.
type RewardWeights struct {
	Delay  float64
	Energy float64
}

// DefaultRewardWeights penalise delay and energy.
func DefaultRewardWeights() RewardWeights { return RewardWeights{Delay: -1.0, Energy: -0.02} }

// Reward returns Delay*delay + Energy*energy.
func (w RewardWeights) Reward(delay, energy float64) float64 {
	return w.Delay*delay + w.Energy*energy
}
