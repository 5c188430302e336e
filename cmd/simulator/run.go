package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/leo-transcode-sim/core"
	"github.com/signalsfoundry/leo-transcode-sim/internal/config"
	"github.com/signalsfoundry/leo-transcode-sim/internal/demand"
	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/internal/observability"
	"github.com/signalsfoundry/leo-transcode-sim/internal/sim/ledger"
	"github.com/signalsfoundry/leo-transcode-sim/kb"
	"github.com/signalsfoundry/leo-transcode-sim/model"
	"github.com/signalsfoundry/leo-transcode-sim/timectrl"
)

// errCapacityAbort stops a run that was asked to abort on unserved regions.
var errCapacityAbort = errors.New("capacity exhausted")

// options is the resolved command line. Pointer fields are nil unless the
// flag or its environment variable was set, so they only override the
// config file when given.
type options struct {
	ConfigPath  string
	RealPath    string
	PredPath    string
	Output      string
	Format      ledger.Format
	MetricsAddr string
	Pace        time.Duration
	LogLevel    string
	LogFormat   string

	Slots           *int
	Learning        *bool
	AbortOnCapacity *bool
	Seed            *uint64
}

func optionsFrom(v *viper.Viper) options {
	o := options{
		ConfigPath:  v.GetString("config"),
		RealPath:    v.GetString("real"),
		PredPath:    v.GetString("pred"),
		Output:      v.GetString("output"),
		Format:      ledger.Format(v.GetString("format")),
		MetricsAddr: v.GetString("metrics-addr"),
		Pace:        v.GetDuration("pace"),
		LogLevel:    v.GetString("log-level"),
		LogFormat:   v.GetString("log-format"),
	}
	if v.IsSet("slots") {
		n := v.GetInt("slots")
		o.Slots = &n
	}
	if v.IsSet("learning") {
		b := v.GetBool("learning")
		o.Learning = &b
	}
	if v.IsSet("abort-on-capacity") {
		b := v.GetBool("abort-on-capacity")
		o.AbortOnCapacity = &b
	}
	if v.IsSet("seed") {
		s := v.GetUint64("seed")
		o.Seed = &s
	}
	return o
}

// resolveConfig loads the config file and applies the flag overrides.
func resolveConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}
	if o.Slots != nil {
		cfg.Simulation.Slots = *o.Slots
	}
	if o.Learning != nil {
		cfg.Simulation.Learning = *o.Learning
	}
	if o.AbortOnCapacity != nil {
		cfg.Simulation.AbortOnCapacity = *o.AbortOnCapacity
	}
	if o.Seed != nil {
		cfg.Demand.Seed = *o.Seed
	}
	return cfg, cfg.Validate()
}

// loadDemand reads the real and predicted series and extends both to the
// configured number of slots. Without a real CSV the run starts from zero
// demand everywhere.
func loadDemand(cfg config.Config, o options, regions int) (actual, predicted model.DemandSeries, err error) {
	bitrates := cfg.BitrateLadder()
	actual = model.DemandSeries{}
	if o.RealPath != "" {
		if actual, err = demand.LoadFile(o.RealPath, bitrates, regions); err != nil {
			return nil, nil, err
		}
	}
	realGen, err := demand.NewGenerator(cfg.GeneratorConfig())
	if err != nil {
		return nil, nil, err
	}
	realGen.Extend(actual, cfg.Simulation.Slots, regions, bitrates)

	if o.PredPath == "" {
		return actual, actual.Clone(), nil
	}
	if predicted, err = demand.LoadFile(o.PredPath, bitrates, regions); err != nil {
		return nil, nil, err
	}
	predCfg := cfg.GeneratorConfig()
	predCfg.Seed++
	predGen, err := demand.NewGenerator(predCfg)
	if err != nil {
		return nil, nil, err
	}
	predGen.Extend(predicted, cfg.Simulation.Slots, regions, bitrates)
	return actual, predicted, nil
}

func run(ctx context.Context, o options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	base := logging.New(logging.Config{Level: o.LogLevel, Format: o.LogFormat, Output: stderr})
	ctx, log := logging.WithRunLogger(ctx, base)

	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}
	grid, err := cfg.GridSpec()
	if err != nil {
		return err
	}
	actual, predicted, err := loadDemand(cfg, o, grid.Regions())
	if err != nil {
		return err
	}

	traceCfg := observability.TracingConfigFromEnv().ForRun(logging.RunIDFromContext(ctx), grid.Rows, grid.Cols)
	shutdownTracing, err := observability.InitTracing(ctx, traceCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	store := kb.NewKnowledgeBase()
	defer collector.WatchKnowledgeBase(store)()

	netOpts := append(cfg.NetworkOptions(), core.WithKnowledgeBase(store), core.WithNetworkLogger(log))
	network, err := core.NewNodeNetwork(grid, netOpts...)
	if err != nil {
		return err
	}
	book := ledger.New(ledger.WithLogger(log))
	engine := core.NewSimulationEngine(network, cfg.EngineConfig(),
		core.WithLogSink(book),
		core.WithMetrics(collector),
		core.WithEngineLogger(log),
	)

	mode := timectrl.Accelerated
	if o.Pace > 0 {
		mode = timectrl.RealTime
	}
	clock := timectrl.NewSlotController(time.Now().UTC(), o.Pace, mode)
	clock.AddListener(func(ctx context.Context, slot int) error {
		report, err := engine.RunSlot(ctx, core.NewSlotContext(slot, actual, predicted))
		if err != nil {
			return err
		}
		if cfg.Simulation.AbortOnCapacity && len(report.Failures) > 0 {
			return fmt.Errorf("%w: %d regions unserved, first: %v",
				errCapacityAbort, len(report.Failures), report.Failures[0].Err)
		}
		return nil
	})

	log.Info(ctx, "starting simulation",
		logging.Int("slots", cfg.Simulation.Slots),
		logging.Int("regions", grid.Regions()),
		logging.Bool("learning", cfg.Simulation.Learning),
	)

	g, gctx := errgroup.WithContext(ctx)
	var metricsSrv *http.Server
	if o.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: o.MetricsAddr, Handler: mux}
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", o.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if metricsSrv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}()
		}
		return clock.Run(gctx, cfg.Simulation.Slots)
	})
	runErr := g.Wait()

	if err := writeLedger(book, o, stdout); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}

	summary := book.Summary()
	log.Info(ctx, "simulation complete",
		logging.Int("slots", engine.SlotsRun()),
		logging.Int("records", book.Len()),
		logging.Float64("total_energy", summary.TotalEnergy),
	)
	if o.Output != "-" {
		printSummary(stdout, summary)
	}
	return nil
}

// writeLedger exports the ledger even for an aborted run so the slots that
// did complete are kept.
func writeLedger(book *ledger.Ledger, o options, stdout io.Writer) error {
	switch o.Output {
	case "":
		return nil
	case "-":
		return book.Export(stdout, o.Format)
	}
	f, err := os.Create(o.Output)
	if err != nil {
		return fmt.Errorf("create ledger output: %w", err)
	}
	if err := book.Export(f, o.Format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, s ledger.Summary) {
	for _, slot := range s.Slots {
		fmt.Fprintf(w, "slot %-3d regions=%-3d mean_delay=%.4fs max_delay=%.4fs energy=%.1fJ\n",
			slot.Slot, slot.Regions, slot.MeanDelay, slot.MaxDelay, slot.Energy)
	}
	fmt.Fprintf(w, "total energy %.1fJ\n", s.TotalEnergy)
}
