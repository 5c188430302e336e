package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// SlotContext carries the demand tables through one slot. Real is read-only;
// Pred is corrected in place by the scheduler, and later regions of the same
// slot observe those corrections.
type SlotContext struct {
	Slot int
	Real model.DemandSeries
	Pred model.DemandSeries
}

// NewSlotContext returns a context for slot. A nil Pred is replaced by an
// empty table so corrections have somewhere to go.
func NewSlotContext(slot int, real, pred model.DemandSeries) *SlotContext {
	if real == nil {
		real = model.DemandSeries{}
	}
	if pred == nil {
		pred = model.DemandSeries{}
	}
	return &SlotContext{Slot: slot, Real: real, Pred: pred}
}

// Scheduler assigns each required bitrate of a region to an idle node of the
// activated cluster using the nodes' own demand predictions.
type Scheduler struct {
	net        *NodeNetwork
	predictors *PredictorBank
	log        logging.Logger
}

// NewScheduler wires a scheduler. A nil logger is replaced by a no-op one.
func NewScheduler(net *NodeNetwork, predictors *PredictorBank, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Noop()
	}
	return &Scheduler{net: net, predictors: predictors, log: log}
}

// Predictors returns the per-node predictor bank.
func (s *Scheduler) Predictors() *PredictorBank { return s.predictors }

// Schedule assigns the required bitrates of region, lowest bitrate first.
// For each bitrate the idle cluster member whose own region has the strictly
// highest predicted demand wins; ties keep the earlier member in cluster
// order (self, up, down, left, right). The winner becomes busy, its predictor
// learns from its own region's error, and the corrected prediction is written
// back to sc.Pred.
func (s *Scheduler) Schedule(ctx context.Context, sc *SlotContext, region, activated int) (model.Assignment, error) {
	cluster, err := s.net.ClusterOf(activated)
	if err != nil {
		return nil, err
	}
	idle, err := s.net.IdleMembers(cluster)
	if err != nil {
		return nil, err
	}
	if len(idle) == 0 {
		return nil, fmt.Errorf("%w: slot %d region %d cluster of node %d has no idle member", ErrNoIdleCapacity, sc.Slot, region, activated)
	}

	required := sc.Real.Region(sc.Slot, region).Required()
	// Every bitrate needs its own idle member; fail before touching any state.
	if len(required) > len(idle) {
		return nil, fmt.Errorf("%w: slot %d region %d node %d: %d bitrates, %d idle members",
			ErrNoIdleCapacity, sc.Slot, region, activated, len(required), len(idle))
	}
	assignments := make(model.Assignment, len(required))

	for _, b := range required {
		bestIdx, bestPred := 0, 0.0
		for i, id := range idle {
			node, err := s.net.Node(id)
			if err != nil {
				return nil, err
			}
			pred := sc.Pred.Get(sc.Slot, node.Region, b)
			if i == 0 || pred > bestPred {
				bestIdx, bestPred = i, pred
			}
		}

		chosen := idle[bestIdx]
		node, _ := s.net.Node(chosen)
		node.Busy = true
		node.Processing[b] = region
		assignments[b] = chosen
		idle = append(idle[:bestIdx:bestIdx], idle[bestIdx+1:]...)

		own := node.Region
		oldPred := sc.Pred.Get(sc.Slot, own, b)
		realVal := sc.Real.Get(sc.Slot, own, b)
		s.predictors.RecordError(chosen, oldPred-realVal)
		newPred := s.predictors.AdjustPrediction(chosen, oldPred)
		sc.Pred.Set(sc.Slot, own, b, newPred)

		s.log.Debug(ctx, "bitrate scheduled",
			logging.Int("slot", sc.Slot),
			logging.Int("region", region),
			logging.String("bitrate", b.String()),
			logging.Int("node", chosen),
			logging.Float64("pred_before", oldPred),
			logging.Float64("pred_after", newPred),
		)
	}
	return assignments, nil
}
