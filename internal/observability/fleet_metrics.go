package observability

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/leo-transcode-sim/kb"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// fleetMetrics tracks node state: how many nodes are busy or depleted and
// how much battery is left.
type fleetMetrics struct {
	NodesBusy       prometheus.Gauge
	NodesDepleted   prometheus.Gauge
	BatteryMin      prometheus.Gauge
	BatteryMean     prometheus.Gauge
	DepletionsTotal prometheus.Counter
	RestoresTotal   prometheus.Counter
}

func newFleetMetrics(reg prometheus.Registerer) (fleetMetrics, error) {
	var (
		f   fleetMetrics
		err error
	)
	if f.NodesBusy, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leosim_nodes_busy",
		Help: "Nodes busy at the end of the last slot.",
	}), "leosim_nodes_busy"); err != nil {
		return f, err
	}
	if f.NodesDepleted, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leosim_nodes_depleted",
		Help: "Nodes whose battery is below the minimum threshold.",
	}), "leosim_nodes_depleted"); err != nil {
		return f, err
	}
	if f.BatteryMin, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leosim_battery_min_joules",
		Help: "Lowest node battery level at the end of the last slot.",
	}), "leosim_battery_min_joules"); err != nil {
		return f, err
	}
	if f.BatteryMean, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leosim_battery_mean_joules",
		Help: "Mean node battery level at the end of the last slot.",
	}), "leosim_battery_mean_joules"); err != nil {
		return f, err
	}
	if f.DepletionsTotal, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leosim_node_depletions_total",
		Help: "Cumulative number of nodes that fell below the battery threshold.",
	}), "leosim_node_depletions_total"); err != nil {
		return f, err
	}
	if f.RestoresTotal, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leosim_node_restores_total",
		Help: "Cumulative number of depleted nodes recharged.",
	}), "leosim_node_restores_total"); err != nil {
		return f, err
	}
	return f, nil
}

func (f *fleetMetrics) setFleet(nodes []*model.Node) {
	if len(nodes) == 0 {
		return
	}
	busy, depleted := 0, 0
	lowest, sum := math.Inf(1), 0.0
	for _, n := range nodes {
		if n.Busy {
			busy++
		}
		if n.Depleted {
			depleted++
		}
		lowest = math.Min(lowest, n.Battery)
		sum += n.Battery
	}
	f.NodesBusy.Set(float64(busy))
	f.NodesDepleted.Set(float64(depleted))
	f.BatteryMin.Set(lowest)
	f.BatteryMean.Set(sum / float64(len(nodes)))
}

// WatchKnowledgeBase counts depletion and restore events published by store.
// The returned function stops watching.
func (c *SimCollector) WatchKnowledgeBase(store *kb.KnowledgeBase) (unsubscribe func()) {
	if c == nil || store == nil {
		return func() {}
	}
	return store.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventNodeDepleted:
			c.DepletionsTotal.Inc()
		case kb.EventNodeRestored:
			c.RestoresTotal.Inc()
		}
	})
}
