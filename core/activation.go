package core

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// ActivationFeatures describes a path node as an activation candidate.
type ActivationFeatures struct {
	Distance      float64 // grid distance from the node to the target region
	Covered       float64 // required bitrates already processed in the cluster
	Idle          float64 // idle cluster members
	MeanBattery   float64 // mean battery of idle members, 0 if none
	MeanBandwidth float64 // mean bandwidth in use of idle members, 0 if none
}

// Vector returns the features in scoring order.
func (f ActivationFeatures) Vector() []float64 {
	return []float64{f.Distance, f.Covered, f.Idle, f.MeanBattery, f.MeanBandwidth}
}

// Evaluation is the activation view of one path node.
type Evaluation struct {
	Node     int
	Cluster  []int
	IdleSet  []int
	Needed   int // required bitrates not yet processed in the cluster
	Feasible bool
	Features ActivationFeatures
}

// ActivationSelector picks which node on a routed path takes a region.
type ActivationSelector struct {
	net    *NodeNetwork
	scorer *LinearScorer
	log    logging.Logger

	explore bool
}

// SelectorOption customises an ActivationSelector.
type SelectorOption func(*ActivationSelector)

// WithExploration enables epsilon-greedy selection among feasible nodes.
func WithExploration(enabled bool) SelectorOption {
	return func(s *ActivationSelector) { s.explore = enabled }
}

// WithSelectorLogger attaches a structured logger.
func WithSelectorLogger(l logging.Logger) SelectorOption {
	return func(s *ActivationSelector) {
		if l != nil {
			s.log = l
		}
	}
}

// NewActivationSelector wires a selector to the network and scoring model.
func NewActivationSelector(net *NodeNetwork, scorer *LinearScorer, opts ...SelectorOption) *ActivationSelector {
	s := &ActivationSelector{net: net, scorer: scorer, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scorer returns the scoring model.
func (s *ActivationSelector) Scorer() *LinearScorer { return s.scorer }

// Evaluate computes cluster, feasibility and features for every path node.
func (s *ActivationSelector) Evaluate(region int, path []int, demand model.RegionDemand) ([]Evaluation, error) {
	required := demand.Required()
	grid := s.net.Grid()

	out := make([]Evaluation, 0, len(path))
	for _, id := range path {
		node, err := s.net.Node(id)
		if err != nil {
			return nil, err
		}
		cluster, err := s.net.ClusterOf(id)
		if err != nil {
			return nil, err
		}
		idle, err := s.net.IdleMembers(cluster)
		if err != nil {
			return nil, err
		}

		covered := 0
		for _, b := range required {
			if s.clusterProcesses(cluster, b) {
				covered++
			}
		}
		needed := len(required) - covered

		dist, err := grid.Distance(node.Region, region)
		if err != nil {
			return nil, err
		}

		f := ActivationFeatures{
			Distance: float64(dist),
			Covered:  float64(covered),
			Idle:     float64(len(idle)),
		}
		if len(idle) > 0 {
			battery := make([]float64, 0, len(idle))
			bandwidth := make([]float64, 0, len(idle))
			for _, m := range idle {
				mn, _ := s.net.Node(m)
				battery = append(battery, mn.Battery)
				bandwidth = append(bandwidth, mn.BandwidthInUse)
			}
			f.MeanBattery = stat.Mean(battery, nil)
			f.MeanBandwidth = stat.Mean(bandwidth, nil)
		}

		out = append(out, Evaluation{
			Node:     id,
			Cluster:  cluster,
			IdleSet:  idle,
			Needed:   needed,
			Feasible: needed <= len(idle),
			Features: f,
		})
	}
	return out, nil
}

// Select returns the activated node for a region among the feasible path
// nodes. It fails with ErrNoFeasibleNode when none qualifies.
func (s *ActivationSelector) Select(ctx context.Context, slot, region int, path []int, demand model.RegionDemand) (Evaluation, error) {
	evals, err := s.Evaluate(region, path, demand)
	if err != nil {
		return Evaluation{}, err
	}

	candidates := make([]Candidate, 0, len(evals))
	byNode := make(map[int]Evaluation, len(evals))
	for _, ev := range evals {
		if !ev.Feasible {
			continue
		}
		candidates = append(candidates, Candidate{Node: ev.Node, Features: ev.Features.Vector()})
		byNode[ev.Node] = ev
	}

	pick := s.scorer.SelectBest
	if s.explore {
		pick = s.scorer.Explore
	}
	chosen, ok, err := pick(candidates)
	if err != nil {
		return Evaluation{}, err
	}
	if !ok {
		return Evaluation{}, fmt.Errorf("%w: slot %d region %d, %d path nodes", ErrNoFeasibleNode, slot, region, len(path))
	}

	ev := byNode[chosen.Node]
	s.log.Debug(ctx, "activation selected",
		logging.Int("slot", slot),
		logging.Int("region", region),
		logging.Int("node", ev.Node),
		logging.Int("feasible", len(candidates)),
		logging.Int("needed", ev.Needed),
	)
	return ev, nil
}

func (s *ActivationSelector) clusterProcesses(cluster []int, b model.Bitrate) bool {
	for _, id := range cluster {
		if n, err := s.net.Node(id); err == nil && n.IsProcessing(b) {
			return true
		}
	}
	return false
}
