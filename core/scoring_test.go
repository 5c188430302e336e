package core

import "testing"

func candidates() []Candidate {
	return []Candidate{
		{Node: 4, Features: []float64{0, 1, 2, 3, 4}},
		{Node: 7, Features: []float64{5, 1, 1, 0, 0}},
		{Node: 9, Features: []float64{1, 0, 0, 0, 9}},
	}
}

func TestSelectBestZeroWeightsPicksFirst(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	best, ok, err := s.SelectBest(candidates())
	if err != nil || !ok {
		t.Fatalf("SelectBest: ok=%v err=%v", ok, err)
	}
	if best.Node != 4 {
		t.Fatalf("expected first candidate on tie, got node %d", best.Node)
	}
}

func TestSelectBestUsesWeights(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	if err := s.SetWeights(ActionActivate, []float64{1, 0, 0, 0, 0}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	best, _, _ := s.SelectBest(candidates())
	if best.Node != 7 {
		t.Fatalf("expected node 7 for distance weight, got %d", best.Node)
	}

	if err := s.SetWeights(ActionActivate, []float64{0, 0, 0, 0, 1}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	best, _, _ = s.SelectBest(candidates())
	if best.Node != 9 {
		t.Fatalf("expected node 9 for bandwidth weight, got %d", best.Node)
	}
}

func TestSelectBestEmpty(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	if _, ok, err := s.SelectBest(nil); ok || err != nil {
		t.Fatalf("SelectBest(nil) ok=%v err=%v", ok, err)
	}
}

func TestScoreDimensionMismatch(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	if _, err := s.Score([]float64{1, 2}, ActionActivate); err == nil {
		t.Fatalf("expected error for short state")
	}
	if err := s.SetWeights(ActionActivate, []float64{1}); err == nil {
		t.Fatalf("expected error for short weights")
	}
}

func TestUpdateTerminal(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	state := []float64{1, 0, 2, 0, 0}

	td, err := s.Update(state, ActionActivate, -1, nil, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !almostEqual(td, -1) {
		t.Fatalf("td error = %v, want -1", td)
	}
	w := s.Weights(ActionActivate)
	if !almostEqual(w[0], -0.05) || !almostEqual(w[2], -0.1) || w[1] != 0 {
		t.Fatalf("weights after terminal update = %v", w)
	}
}

func TestUpdateBootstrapsFromNextState(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	if err := s.SetWeights(ActionActivate, []float64{1, 0, 0, 0, 0}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	state := []float64{1, 0, 0, 0, 0}
	next := []float64{2, 0, 0, 0, 0}

	// target = 0 + 0.9*2 = 1.8, current = 1.
	td, err := s.Update(state, ActionActivate, 0, next, []Action{ActionActivate})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !almostEqual(td, 0.8) {
		t.Fatalf("td error = %v, want 0.8", td)
	}
	if w := s.Weights(ActionActivate); !almostEqual(w[0], 1.04) {
		t.Fatalf("w[0] = %v, want 1.04", w[0])
	}
}

func TestWeightsReturnsCopy(t *testing.T) {
	s := NewLinearScorer(DefaultScorerConfig())
	w := s.Weights(ActionActivate)
	w[0] = 42
	if s.Weights(ActionActivate)[0] != 0 {
		t.Fatalf("Weights leaked internal slice")
	}
}

func TestExplore(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.Epsilon = 0
	greedy := NewLinearScorer(cfg)
	for i := 0; i < 20; i++ {
		c, ok, err := greedy.Explore(candidates())
		if err != nil || !ok || c.Node != 4 {
			t.Fatalf("greedy Explore = %+v ok=%v err=%v", c, ok, err)
		}
	}

	cfg.Epsilon = 1
	cfg.Seed = 7
	random := NewLinearScorer(cfg)
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		c, ok, err := random.Explore(candidates())
		if err != nil || !ok {
			t.Fatalf("Explore: ok=%v err=%v", ok, err)
		}
		seen[c.Node] = true
	}
	if len(seen) != 3 {
		t.Fatalf("full exploration visited %v", seen)
	}
}

func TestSelectAction(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.Epsilon = 0
	s := NewLinearScorer(cfg)
	if err := s.SetWeights(Action(1), []float64{1, 0, 0, 0, 0}); err != nil {
		t.Fatalf("SetWeights: %v", err)
	}
	a, err := s.SelectAction([]float64{1, 0, 0, 0, 0}, []Action{ActionActivate, Action(1)})
	if err != nil {
		t.Fatalf("SelectAction: %v", err)
	}
	if a != Action(1) {
		t.Fatalf("SelectAction = %d, want 1", a)
	}
	if _, err := s.SelectAction(nil, nil); err == nil {
		t.Fatalf("expected error with no actions")
	}
}

func TestReward(t *testing.T) {
	if got := DefaultRewardWeights().Reward(1, 10); !almostEqual(got, -1.2) {
		t.Fatalf("Reward = %v, want -1.2", got)
	}
}
