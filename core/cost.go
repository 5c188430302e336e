package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// CostParams holds the delay and energy constants of the cost model.
type CostParams struct {
	ActivationDelay float64 // seconds, case 1 only
	SchedulingDelay float64 // seconds, case 1 only

	PropagationDelayPerHop float64 // seconds per ISL hop

	TransmissionDelayPerHop  map[model.Bitrate]float64 // seconds per hop
	DefaultTransmissionDelay float64

	TranscodeDelay        map[model.Bitrate]float64 // seconds
	DefaultTranscodeDelay float64

	TranscodeEnergy        map[model.Bitrate]float64 // joules
	DefaultTranscodeEnergy float64

	RelayEnergyPerHop float64 // joules per ISL hop
}

// Standard renditions of the bitrate ladder, in Mbps.
var StandardBitrates = []model.Bitrate{0.75, 1.20, 1.85, 2.85}

// ChunkBits is the size of one video chunk sent across a hop.
const ChunkBits = 2e6

// DefaultCostParams returns the reference delay and energy constants.
// Transmission delay per hop is ChunkBits / (bitrate * 1e6).
func DefaultCostParams() CostParams {
	p := CostParams{
		ActivationDelay:          0.01,
		SchedulingDelay:          0.01,
		PropagationDelayPerHop:   0.005,
		TransmissionDelayPerHop:  make(map[model.Bitrate]float64, len(StandardBitrates)),
		DefaultTransmissionDelay: 0.02,
		TranscodeDelay: map[model.Bitrate]float64{
			0.75: 0.19,
			1.20: 0.16,
			1.85: 0.13,
			2.85: 0.13,
		},
		DefaultTranscodeDelay: 0.15,
		TranscodeEnergy: map[model.Bitrate]float64{
			0.75: 14.2,
			1.20: 8.2,
			1.85: 5.1,
			2.85: 5.1,
		},
		DefaultTranscodeEnergy: 0.05,
		RelayEnergyPerHop:      0.5,
	}
	for _, b := range StandardBitrates {
		p.TransmissionDelayPerHop[b] = ChunkBits / (b.Mbps() * 1e6)
	}
	return p
}

func lookup(table map[model.Bitrate]float64, b model.Bitrate, fallback float64) float64 {
	if v, ok := table[b]; ok {
		return v
	}
	return fallback
}

// EnergySink receives one energy record per (slot, region, bitrate).
type EnergySink interface {
	RecordEnergy(rec model.EnergyRecord) error
}

// CostModel computes delay and energy for scheduled bitrates and applies the
// energy and bandwidth to node state.
type CostModel struct {
	net    *NodeNetwork
	router *Router
	params CostParams
	sink   EnergySink
	log    logging.Logger
}

// NewCostModel wires a cost model. sink may be nil.
func NewCostModel(net *NodeNetwork, router *Router, params CostParams, sink EnergySink, log logging.Logger) *CostModel {
	if log == nil {
		log = logging.Noop()
	}
	return &CostModel{net: net, router: router, params: params, sink: sink, log: log}
}

// Params returns the cost constants.
func (c *CostModel) Params() CostParams { return c.params }

// IsCase1 reports whether no cluster member processes b yet, i.e. serving b
// needs a fresh transcode rather than reusing an in-flight stream.
func (c *CostModel) IsCase1(cluster []int, b model.Bitrate) (bool, error) {
	return c.freshFor(cluster, b, 0)
}

// freshFor is IsCase1 ignoring streams started for region itself, so a
// region's own assignment does not count as reuse. region 0 ignores nothing.
func (c *CostModel) freshFor(cluster []int, b model.Bitrate, region int) (bool, error) {
	for _, id := range cluster {
		node, err := c.net.Node(id)
		if err != nil {
			return false, err
		}
		owner, ok := node.Processing[b]
		if ok && (region == 0 || owner != region) {
			return false, nil
		}
	}
	return true, nil
}

// DelayBreakdown itemises the delay of one bitrate.
type DelayBreakdown struct {
	Hops         int
	Propagation  float64
	Transmission float64
	Activation   float64
	Scheduling   float64
	Transcode    float64
	Case1        bool
}

// Total returns the summed delay in seconds.
func (d DelayBreakdown) Total() float64 {
	return d.Propagation + d.Transmission + d.Activation + d.Scheduling + d.Transcode
}

// BitrateDelay computes the itemised delay of serving b to region from proc.
func (c *CostModel) BitrateDelay(region int, b model.Bitrate, proc int) (DelayBreakdown, error) {
	viewer, ok := c.net.NodeAt(region)
	if !ok {
		return DelayBreakdown{}, fmt.Errorf("%w: no viewer node over region %d", ErrUnknownNode, region)
	}
	hops, err := c.router.HopCount(proc, viewer.ID)
	if err != nil {
		return DelayBreakdown{}, err
	}
	cluster, err := c.net.ClusterOf(proc)
	if err != nil {
		return DelayBreakdown{}, err
	}
	fresh, err := c.freshFor(cluster, b, region)
	if err != nil {
		return DelayBreakdown{}, err
	}

	d := DelayBreakdown{
		Hops:         hops,
		Propagation:  float64(hops) * c.params.PropagationDelayPerHop,
		Transmission: float64(hops) * lookup(c.params.TransmissionDelayPerHop, b, c.params.DefaultTransmissionDelay),
		Case1:        fresh,
	}
	if fresh {
		d.Activation = c.params.ActivationDelay
		d.Scheduling = c.params.SchedulingDelay
		d.Transcode = lookup(c.params.TranscodeDelay, b, c.params.DefaultTranscodeDelay)
	}
	return d, nil
}

// DelayForBitrate returns the delay in seconds of serving b to region from proc.
func (c *CostModel) DelayForBitrate(region int, b model.Bitrate, proc int) (float64, error) {
	d, err := c.BitrateDelay(region, b, proc)
	if err != nil {
		return 0, err
	}
	return d.Total(), nil
}

// RegionDelay returns the viewer-weighted mean delay of a region, or 0 when
// it has no viewers.
func (c *CostModel) RegionDelay(region int, demand model.RegionDemand, a model.Assignment) (float64, error) {
	total := 0.0
	for _, b := range demand.Required() {
		total += demand[b]
	}
	if total == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, b := range demand.Required() {
		proc, ok := a[b]
		if !ok {
			return 0, fmt.Errorf("%w: region %d bitrate %s", ErrMissingAssignment, region, b)
		}
		d, err := c.DelayForBitrate(region, b, proc)
		if err != nil {
			return 0, err
		}
		sum += d * demand[b]
	}
	return sum / total, nil
}

// UpdateEnergyAndBandwidth charges proc for transcoding b and relaying it to
// viewer, adds b to its bandwidth, depletes it below the battery threshold and
// appends the energy record to the sink.
func (c *CostModel) UpdateEnergyAndBandwidth(ctx context.Context, slot, region int, b model.Bitrate, proc, viewer int) (model.EnergyRecord, error) {
	node, err := c.net.Node(proc)
	if err != nil {
		return model.EnergyRecord{}, err
	}
	hops, err := c.router.HopCount(proc, viewer)
	if err != nil {
		return model.EnergyRecord{}, err
	}

	transcode := lookup(c.params.TranscodeEnergy, b, c.params.DefaultTranscodeEnergy)
	relay := float64(hops) * c.params.RelayEnergyPerHop
	node.Battery -= transcode + relay
	node.BandwidthInUse += b.Mbps()

	if node.Battery < c.net.BatteryMin() && !node.Depleted {
		if err := c.net.MarkDepleted(proc); err != nil {
			return model.EnergyRecord{}, err
		}
		c.log.Warn(ctx, "node battery depleted",
			logging.Int("slot", slot),
			logging.Int("node", proc),
			logging.Float64("battery", node.Battery),
		)
	}

	rec := model.EnergyRecord{
		Key:             model.RecordKey{Slot: slot, Region: region, Bitrate: b},
		Node:            proc,
		Hops:            hops,
		TranscodeEnergy: transcode,
		RelayEnergy:     relay,
		BatteryAfter:    node.Battery,
	}
	if c.sink != nil {
		if err := c.sink.RecordEnergy(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// RegionEnergy applies UpdateEnergyAndBandwidth to every assignment of a
// region in ascending bitrate order.
func (c *CostModel) RegionEnergy(ctx context.Context, slot, region int, a model.Assignment) ([]model.EnergyRecord, error) {
	viewer, ok := c.net.NodeAt(region)
	if !ok {
		return nil, fmt.Errorf("%w: no viewer node over region %d", ErrUnknownNode, region)
	}
	recs := make([]model.EnergyRecord, 0, len(a))
	for _, b := range a.Bitrates() {
		rec, err := c.UpdateEnergyAndBandwidth(ctx, slot, region, b, a[b], viewer.ID)
		if err != nil {
			return recs, fmt.Errorf("slot %d region %d bitrate %s: %w", slot, region, b, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
