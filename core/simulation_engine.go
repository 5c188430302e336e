package core

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

const instrumentationName = "github.com/signalsfoundry/leo-transcode-sim/core"

// LogSink is the append-only record collaborator of the engine.
type LogSink interface {
	RecordActivation(rec model.ActivationRecord) error
	RecordScheduling(rec model.SchedulingRecord) error
	RecordDelay(rec model.DelayRecord) error
	EnergySink
}

// MetricsRecorder receives pipeline observations. Implementations must be
// cheap; they run inline with the simulation.
type MetricsRecorder interface {
	ObserveRegion(o RegionOutcome)
	ObserveRegionFailure(slot, region int, reason string)
	ObserveSlot(r SlotReport, nodes []*model.Node)
}

// RegionOutcome is everything the pipeline decided for one region.
type RegionOutcome struct {
	Slot        int
	Region      int
	Viewer      int
	Path        []int
	Activated   int
	Assignments model.Assignment
	Delays      map[model.Bitrate]DelayBreakdown
	Delay       float64
	Energy      []model.EnergyRecord
}

// EnergySpent sums transcoding and relay energy over the region's streams.
func (o RegionOutcome) EnergySpent() float64 {
	total := 0.0
	for _, rec := range o.Energy {
		total += rec.TranscodeEnergy + rec.RelayEnergy
	}
	return total
}

// RegionFailure is a region that could not be served in a slot.
type RegionFailure struct {
	Region int
	Err    error
}

// SlotReport summarises one slot.
type SlotReport struct {
	Slot     int
	Outcomes []RegionOutcome
	Failures []RegionFailure
}

// MeanDelay averages the region delays of served regions.
func (r SlotReport) MeanDelay() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range r.Outcomes {
		sum += o.Delay
	}
	return sum / float64(len(r.Outcomes))
}

// EngineConfig gathers the constants the pipeline consumes.
type EngineConfig struct {
	SourceRegion          int
	Cost                  CostParams
	Scorer                ScorerConfig
	PredictorWindow       int
	PredictorLearningRate float64

	// Learning enables epsilon-greedy activation and TD updates of the
	// activation weights after every served region.
	Learning bool
	Rewards  RewardWeights
}

// DefaultEngineConfig returns the reference configuration with learning off.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SourceRegion:          1,
		Cost:                  DefaultCostParams(),
		Scorer:                DefaultScorerConfig(),
		PredictorWindow:       3,
		PredictorLearningRate: 0.1,
		Rewards:               DefaultRewardWeights(),
	}
}

// SimulationEngine runs the per-slot pipeline: advance and reset the network,
// then for each region in ascending order route, activate, schedule and cost.
// Regions are processed strictly in sequence because later regions observe
// the busy flags and prediction corrections of earlier ones.
type SimulationEngine struct {
	Net       *NodeNetwork
	Router    *Router
	Selector  *ActivationSelector
	Scheduler *Scheduler
	Cost      *CostModel

	cfg     EngineConfig
	sink    LogSink
	metrics MetricsRecorder
	log     logging.Logger
	tracer  trace.Tracer

	slotsRun      int
	pending       *transition
	slotListeners []func(SlotReport)
}

type transition struct {
	state  []float64
	reward float64
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogSink attaches the record sink.
func WithLogSink(s LogSink) EngineOption {
	return func(e *SimulationEngine) { e.sink = s }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *SimulationEngine) { e.metrics = m }
}

// WithEngineLogger attaches a structured logger shared by all stages.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(e *SimulationEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *SimulationEngine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewSimulationEngine wires router, selector, scheduler and cost model
// around net.
func NewSimulationEngine(net *NodeNetwork, cfg EngineConfig, opts ...EngineOption) *SimulationEngine {
	e := &SimulationEngine{
		Net:    net,
		cfg:    cfg,
		log:    logging.Noop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.SourceRegion == 0 {
		e.cfg.SourceRegion = 1
	}

	e.Router = NewRouter(net)
	e.Selector = NewActivationSelector(net, NewLinearScorer(cfg.Scorer),
		WithExploration(cfg.Learning),
		WithSelectorLogger(e.log),
	)
	e.Scheduler = NewScheduler(net, NewPredictorBank(cfg.PredictorWindow, cfg.PredictorLearningRate), e.log)

	var energySink EnergySink
	if e.sink != nil {
		energySink = e.sink
	}
	e.Cost = NewCostModel(net, e.Router, cfg.Cost, energySink, e.log)
	return e
}

// RegisterSlotListener adds a callback invoked after every completed slot.
func (e *SimulationEngine) RegisterSlotListener(fn func(SlotReport)) {
	e.slotListeners = append(e.slotListeners, fn)
}

// SlotsRun returns how many slots have been started.
func (e *SimulationEngine) SlotsRun() int { return e.slotsRun }

// RunSlot resolves one slot. Nodes move before every slot except the first.
// Capacity failures are collected in the report and the remaining regions
// still run; any other error aborts the slot.
func (e *SimulationEngine) RunSlot(ctx context.Context, sc *SlotContext) (SlotReport, error) {
	ctx, span := e.tracer.Start(ctx, "simulation.slot", trace.WithAttributes(attribute.Int("slot", sc.Slot)))
	defer span.End()

	report := SlotReport{Slot: sc.Slot}
	if e.slotsRun > 0 {
		if err := e.Net.AdvanceSlot(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "advance failed")
			return report, &RegionError{Slot: sc.Slot, Stage: "advance", Err: err}
		}
	}
	e.slotsRun++
	e.Net.ResetSlot()

	for region := 1; region <= e.Net.Grid().Regions(); region++ {
		if err := ctx.Err(); err != nil {
			e.pending = nil
			return report, err
		}
		out, err := e.ProcessRegion(ctx, sc, region)
		if err != nil {
			if !IsCapacityError(err) {
				// an aborted slot must not chain into the next one
				e.pending = nil
				span.RecordError(err)
				span.SetStatus(codes.Error, "region failed")
				return report, err
			}
			report.Failures = append(report.Failures, RegionFailure{Region: region, Err: err})
			if e.metrics != nil {
				e.metrics.ObserveRegionFailure(sc.Slot, region, failureReason(err))
			}
			e.log.Warn(ctx, "region not served",
				logging.Int("slot", sc.Slot),
				logging.Int("region", region),
				logging.Err(err),
			)
			continue
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	if err := e.finishEpisode(); err != nil {
		return report, err
	}

	span.SetAttributes(
		attribute.Int("regions.served", len(report.Outcomes)),
		attribute.Int("regions.failed", len(report.Failures)),
	)
	if e.metrics != nil {
		e.metrics.ObserveSlot(report, e.Net.Nodes())
	}
	e.log.Info(ctx, "slot complete",
		logging.Int("slot", sc.Slot),
		logging.Int("served", len(report.Outcomes)),
		logging.Int("failed", len(report.Failures)),
		logging.Float64("mean_delay", report.MeanDelay()),
	)
	for _, fn := range e.slotListeners {
		fn(report)
	}
	return report, nil
}

// ProcessRegion runs route -> activate -> schedule -> delay -> energy for one
// region and appends the records to the sink. Errors are *RegionError.
func (e *SimulationEngine) ProcessRegion(ctx context.Context, sc *SlotContext, region int) (RegionOutcome, error) {
	ctx, span := e.tracer.Start(ctx, "simulation.region", trace.WithAttributes(
		attribute.Int("slot", sc.Slot),
		attribute.Int("region", region),
	))
	defer span.End()

	out, stage, err := e.processRegion(ctx, sc, region)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return out, &RegionError{Slot: sc.Slot, Region: region, Stage: stage, Err: err}
	}
	span.SetAttributes(
		attribute.Int("node.activated", out.Activated),
		attribute.Float64("delay", out.Delay),
	)
	if e.metrics != nil {
		e.metrics.ObserveRegion(out)
	}
	return out, nil
}

func (e *SimulationEngine) processRegion(ctx context.Context, sc *SlotContext, region int) (RegionOutcome, string, error) {
	out := RegionOutcome{Slot: sc.Slot, Region: region}

	viewer, ok := e.Net.NodeAt(region)
	if !ok {
		return out, "routing", errors.Join(ErrUnknownNode, errors.New("no viewer node"))
	}
	source, ok := e.Net.NodeAt(e.cfg.SourceRegion)
	if !ok {
		return out, "routing", errors.Join(ErrUnknownNode, errors.New("no source node"))
	}
	out.Viewer = viewer.ID

	path, err := e.Router.Path(viewer.ID, source.ID)
	if err != nil {
		return out, "routing", err
	}
	out.Path = path

	demand := sc.Real.Region(sc.Slot, region)
	chosen, err := e.Selector.Select(ctx, sc.Slot, region, path, demand)
	if err != nil {
		return out, "activation", err
	}
	out.Activated = chosen.Node
	if err := e.record(func(s LogSink) error {
		return s.RecordActivation(model.ActivationRecord{Slot: sc.Slot, Region: region, Node: chosen.Node})
	}); err != nil {
		return out, "log", err
	}

	assignments, err := e.Scheduler.Schedule(ctx, sc, region, chosen.Node)
	if err != nil {
		return out, "scheduling", err
	}
	out.Assignments = assignments
	if err := e.record(func(s LogSink) error {
		return s.RecordScheduling(model.SchedulingRecord{Slot: sc.Slot, Region: region, Assignments: assignments})
	}); err != nil {
		return out, "log", err
	}

	out.Delays = make(map[model.Bitrate]DelayBreakdown, len(assignments))
	for _, b := range assignments.Bitrates() {
		d, err := e.Cost.BitrateDelay(region, b, assignments[b])
		if err != nil {
			return out, "delay", err
		}
		out.Delays[b] = d
	}
	delay, err := e.Cost.RegionDelay(region, demand, assignments)
	if err != nil {
		return out, "delay", err
	}
	out.Delay = delay
	if err := e.record(func(s LogSink) error {
		return s.RecordDelay(model.DelayRecord{Slot: sc.Slot, Region: region, Delay: delay})
	}); err != nil {
		return out, "log", err
	}

	energy, err := e.Cost.RegionEnergy(ctx, sc.Slot, region, assignments)
	out.Energy = energy
	if err != nil {
		return out, "energy", err
	}

	if e.cfg.Learning {
		if err := e.learn(chosen.Features.Vector(), e.cfg.Rewards.Reward(delay, out.EnergySpent())); err != nil {
			return out, "learning", err
		}
	}
	return out, "", nil
}

func (e *SimulationEngine) record(fn func(LogSink) error) error {
	if e.sink == nil {
		return nil
	}
	return fn(e.sink)
}

// learn closes the previous region's transition with the current state as
// its successor and opens a new one.
func (e *SimulationEngine) learn(state []float64, reward float64) error {
	scorer := e.Selector.Scorer()
	if e.pending != nil {
		if _, err := scorer.Update(e.pending.state, ActionActivate, e.pending.reward, state, []Action{ActionActivate}); err != nil {
			return err
		}
	}
	e.pending = &transition{state: state, reward: reward}
	return nil
}

// finishEpisode closes the last transition of a slot with a terminal target.
func (e *SimulationEngine) finishEpisode() error {
	if e.pending == nil {
		return nil
	}
	p := e.pending
	e.pending = nil
	_, err := e.Selector.Scorer().Update(p.state, ActionActivate, p.reward, nil, nil)
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoFeasibleNode):
		return "no_feasible_node"
	case errors.Is(err, ErrNoIdleCapacity):
		return "no_idle_capacity"
	default:
		return "other"
	}
}
