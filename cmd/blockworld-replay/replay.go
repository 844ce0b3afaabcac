package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/blockworld/internal/blockworld"
	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l1frames"
	"github.com/banshee-data/blockworld/internal/blockworld/l2vision"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/banshee-data/blockworld/internal/blockworld/metrics"
	"github.com/banshee-data/blockworld/internal/blockworld/monitor"
	"github.com/banshee-data/blockworld/internal/blockworld/robot"
	"github.com/banshee-data/blockworld/internal/blockworld/scenario"
	"github.com/banshee-data/blockworld/internal/blockworld/storage/sqlite"
	"github.com/banshee-data/blockworld/internal/config"
	"github.com/banshee-data/blockworld/internal/monitoring"
	"github.com/banshee-data/blockworld/internal/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func runReplay(ctx context.Context, o runOptions, out io.Writer) error {
	logger, err := monitoring.NewLogger(o.dev)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	monitoring.UseZap(logger)
	ops, diag, trace := monitoring.Streams(logger, o.trace)
	blockworld.SetLogWriters(blockworld.LogWriters{Ops: ops, Diag: diag, Trace: trace})
	defer blockworld.SetLogWriters(blockworld.LogWriters{})

	sc, err := scenario.Load(o.scenario)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o.tuning)
	if err != nil {
		return err
	}
	if o.mapMemory {
		cfg.EnableMapMemory = true
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bc := events.Fanout{m}
	obs := l6world.TickObservers{m}
	var vis monitor.Multi

	var store *sqlite.Store
	if o.dbPath != "" {
		store, err = sqlite.Open(o.dbPath, timeutil.RealClock{})
		if err != nil {
			return err
		}
		defer store.Close()
		name := o.runName
		if name == "" {
			name = sc.Name
		}
		runID, err := store.StartRun(name)
		if err != nil {
			return err
		}
		logger.Info("recording run", zap.String("run_id", runID), zap.String("db", o.dbPath))
		bc = append(bc, store)
		obs = append(obs, store)
	}
	var png *monitor.PNGRenderer
	if o.pngDir != "" {
		png = monitor.NewPNGRenderer(o.pngDir, o.every)
		vis = append(vis, png)
	}
	if o.htmlPath != "" {
		vis = append(vis, monitor.NewHTMLRenderer(o.htmlPath, o.every))
	}
	if o.metricsAddr != "" {
		stop, err := serveMetrics(o.metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	arena := l1frames.NewArena()
	sim := robot.NewSim(arena, l2vision.DefaultCalibration())
	w := l6world.New(arena, sim, cfg, l6world.Options{Broadcaster: bc, Visualizer: vis, Observer: obs})
	d := scenario.NewDriver(sc, w, sim)

	start := time.Now()
	runErr := d.RunPaced(ctx, timeutil.RealClock{}, o.pace)
	logger.Info("replay finished",
		zap.String("scenario", sc.Name),
		zap.Int("steps", len(d.Results())),
		zap.Int("objects", w.Registry().Len()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(runErr))
	if png != nil && png.Failures() > 0 {
		logger.Warn("some ticks were not rendered", zap.Int("failures", png.Failures()))
	}
	if store != nil {
		if err := store.Err(); err != nil {
			logger.Warn("event log incomplete", zap.Error(err))
		}
	}

	if err := writeObjects(out, w); err != nil {
		return err
	}

	if o.hold && o.metricsAddr != "" && !errors.Is(runErr, context.Canceled) {
		logger.Info("holding metrics endpoint open; interrupt to exit")
		<-ctx.Done()
	}
	return runErr
}

func loadConfig(path string) (l6world.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath
	}
	tc, err := config.LoadTuningConfig(path)
	if err != nil {
		return l6world.Config{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return l6world.ConfigFromTuning(tc)
}

// serveMetrics serves reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{Handler: metricsHandler(reg), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// writeObjects prints what the world believes about each object.
func writeObjects(out io.Writer, w *l6world.World) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPOSE\tX\tY\tZ\tSEEN")
	for _, o := range w.Registry().All() {
		t := o.Pose().Trans
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%.1f\t%d\n",
			o.ID(), o.Type(), o.PoseState(), t.X, t.Y, t.Z, o.NumTimesObserved())
	}
	return tw.Flush()
}

func listRuns(dbPath string, out io.Writer) error {
	store, err := sqlite.Open(dbPath, timeutil.RealClock{})
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tNAME\tSTARTED\tTICKS\tEVENTS")
	for _, r := range runs {
		ticks, err := store.Ticks(r.ID)
		if err != nil {
			return err
		}
		counts, err := store.CountByKind(r.ID)
		if err != nil {
			return err
		}
		n := 0
		for _, c := range counts {
			n += c
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.Name, r.StartedAt.UTC().Format(time.RFC3339), len(ticks), n)
	}
	return tw.Flush()
}
