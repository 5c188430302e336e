package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/leo-transcode-sim/core"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// SimCollector bundles Prometheus metrics for the slot pipeline. It
// satisfies core.MetricsRecorder; every method is safe on a nil receiver.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Regions        *prometheus.CounterVec
	RegionDelay    prometheus.Histogram
	BitrateStreams *prometheus.CounterVec
	RouteHops      prometheus.Histogram
	Energy         *prometheus.CounterVec
	Slot           prometheus.Gauge

	fleetMetrics
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	regions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leosim_regions_total",
		Help: "Regions processed, labeled by outcome (served or the failure reason).",
	}, []string{"outcome"})
	regions, err := registerCounterVec(reg, regions, "leosim_regions_total")
	if err != nil {
		return nil, err
	}

	delay, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leosim_region_delay_seconds",
		Help:    "Viewer-weighted mean delay of served regions.",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5, 2, 3, 5, 10},
	}), "leosim_region_delay_seconds")
	if err != nil {
		return nil, err
	}

	streams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leosim_bitrate_streams_total",
		Help: "Scheduled bitrate streams, labeled by bitrate and whether a fresh transcode was needed.",
	}, []string{"bitrate", "case"})
	streams, err = registerCounterVec(reg, streams, "leosim_bitrate_streams_total")
	if err != nil {
		return nil, err
	}

	hops, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leosim_route_hops",
		Help:    "ISL hops from the viewer node to the source node.",
		Buckets: prometheus.LinearBuckets(0, 1, 12),
	}), "leosim_route_hops")
	if err != nil {
		return nil, err
	}

	energy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leosim_energy_joules_total",
		Help: "Energy drawn from node batteries, labeled by kind (transcode or relay).",
	}, []string{"kind"})
	energy, err = registerCounterVec(reg, energy, "leosim_energy_joules_total")
	if err != nil {
		return nil, err
	}

	slot, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leosim_slot",
		Help: "Last completed slot.",
	}), "leosim_slot")
	if err != nil {
		return nil, err
	}

	fleet, err := newFleetMetrics(reg)
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:       gatherer,
		Regions:        regions,
		RegionDelay:    delay,
		BitrateStreams: streams,
		RouteHops:      hops,
		Energy:         energy,
		Slot:           slot,
		fleetMetrics:   fleet,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRegion records a served region.
func (c *SimCollector) ObserveRegion(o core.RegionOutcome) {
	if c == nil {
		return
	}
	c.Regions.WithLabelValues("served").Inc()
	c.RegionDelay.Observe(o.Delay)
	if len(o.Path) > 0 {
		c.RouteHops.Observe(float64(len(o.Path) - 1))
	}
	for b, d := range o.Delays {
		kind := "reuse"
		if d.Case1 {
			kind = "fresh"
		}
		c.BitrateStreams.WithLabelValues(b.String(), kind).Inc()
	}
	for _, rec := range o.Energy {
		c.Energy.WithLabelValues("transcode").Add(rec.TranscodeEnergy)
		c.Energy.WithLabelValues("relay").Add(rec.RelayEnergy)
	}
}

// ObserveRegionFailure records a region skipped for lack of capacity.
func (c *SimCollector) ObserveRegionFailure(_, _ int, reason string) {
	if c == nil {
		return
	}
	c.Regions.WithLabelValues(reason).Inc()
}

// ObserveSlot records the end of a slot and refreshes the fleet gauges.
func (c *SimCollector) ObserveSlot(r core.SlotReport, nodes []*model.Node) {
	if c == nil {
		return
	}
	c.Slot.Set(float64(r.Slot))
	c.setFleet(nodes)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
