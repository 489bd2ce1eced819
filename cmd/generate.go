package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/cloudtrail"
	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/entra"
	"github.com/seclog-dev/seclog/gen/population"
	"github.com/seclog-dev/seclog/gen/rate"
	"github.com/seclog-dev/seclog/gen/sink"
)

var (
	outputDir       string  // Overrides output.dir from the config
	actorsFile      string  // Pre-built actor parquet file; empty builds from config
	maxEvents       int64   // Stop after this many events (0 = unlimited)
	maxSeconds      int64   // Stop after this much simulated time (0 = unlimited)
	genWorkers      int     // Uniform-mode worker count
	writerShards    int     // Writer goroutines per source
	schedulerMode   string  // "actor" or "uniform"
	dryRun          bool    // Print the resolved configuration and exit
	metricsInterval float64 // Seconds between throughput reports (0 = off)
)

// generateCmd runs a generation pass end to end: population, rate model,
// sources, writer pipelines, scheduler.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic security event streams",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if schedulerMode != "actor" && schedulerMode != "uniform" {
			logrus.Fatalf("Unknown scheduling mode: %s", schedulerMode)
		}

		cfg, err := LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Could not load config: %v", err)
		}
		if outputDir != "" {
			cfg.Output.Dir = outputDir
		}

		if dryRun {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				logrus.Fatalf("Could not render config: %v", err)
			}
			os.Stdout.Write(out)
			return
		}

		start, err := trafficStart(cfg)
		if err != nil {
			logrus.Fatalf("Invalid traffic.start_time: %v", err)
		}

		pop, err := loadPopulation(cfg, start)
		if err != nil {
			logrus.Fatalf("Could not build population: %v", err)
		}
		logrus.Infof("Population ready: %d actors", pop.Len())

		model, err := rate.New(cfg.Traffic, pop, cfg.Seed)
		if err != nil {
			logrus.Fatalf("Invalid traffic config: %v", err)
		}

		clock := gen.NewClock(start, cfg.Traffic.TimeScale)

		streams, routers, err := buildStreams(cfg, pop)
		if err != nil {
			logrus.Fatalf("Could not set up sources: %v", err)
		}

		engine, err := gen.NewEngine(gen.EngineOptions{
			Seed:    gen.Seed(cfg.Seed),
			Clock:   clock,
			Model:   model,
			Streams: streams,
			Limits:  config.Limits{MaxEvents: maxEvents, MaxSeconds: maxSeconds},
			Workers: genWorkers,
			Uniform: schedulerMode == "uniform",
		})
		if err != nil {
			logrus.Fatalf("Could not set up scheduler: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logrus.Infof("Starting generation: seed=%d mode=%s start=%s scale=%g",
			cfg.Seed, schedulerMode, start.Format(time.RFC3339), cfg.Traffic.TimeScale)
		wall := time.Now()

		done := startMetricsReporter(engine, routers)
		runErr := engine.Run(ctx)
		close(done)

		for _, r := range routers {
			if err := r.Close(); err != nil && runErr == nil {
				runErr = err
			}
		}
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logrus.Fatalf("Generation failed: %v", runErr)
		}

		var total sink.Stats
		for _, r := range routers {
			st := r.Stats()
			total.Events += st.Events
			total.Bytes += st.Bytes
		}
		logrus.Infof("Generation complete: %d events, %d bytes in %s",
			total.Events, total.Bytes, time.Since(wall).Round(time.Millisecond))
	},
}

func loadPopulation(cfg *FileConfig, start time.Time) (*population.Population, error) {
	if actorsFile != "" {
		logrus.Infof("Loading actors from %s", actorsFile)
		return population.ReadFile(context.Background(), actorsFile)
	}
	return population.Build(cfg.Population, cfg.Seed, start)
}

// trafficStart resolves the run's simulated start instant. Pinning it also
// pins timezone offset resolution, so the same config replays identically
// regardless of when the process runs.
func trafficStart(cfg *FileConfig) (time.Time, error) {
	if cfg.Traffic.StartTime == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, cfg.Traffic.StartTime)
}

// buildStreams constructs every enabled source with its selected
// sub-population and a writer pipeline rooted at <output.dir>/<source_id>/.
func buildStreams(cfg *FileConfig, pop *population.Population) ([]gen.Stream, []*sink.Router, error) {
	var streams []gen.Stream
	var routers []*sink.Router

	add := func(src gen.Source, label string, format config.Format) error {
		r, err := sink.NewRouter(sink.Options{
			Dir:    filepath.Join(cfg.Output.Dir, src.ID()),
			Label:  label,
			Shards: writerShards,
			Format: format,
			Files:  cfg.Output.Files,
		})
		if err != nil {
			return err
		}
		streams = append(streams, gen.Stream{Source: src, Sink: r})
		routers = append(routers, r)
		logrus.Infof("Source %s: %d actors, %s output", src.ID(), src.Actors().Len(), format.Type)
		return nil
	}

	if sc := cfg.Sources.CloudTrail; sc != nil {
		sub, err := subPopulation(cfg, pop, cloudtrail.SourceID)
		if err != nil {
			return nil, nil, err
		}
		src, err := cloudtrail.New(sc.Settings, sub)
		if err != nil {
			return nil, nil, err
		}
		if err := add(src, cloudtrail.FileLabel, sc.Format); err != nil {
			return nil, nil, err
		}
	}
	if sc := cfg.Sources.EntraID; sc != nil {
		sub, err := subPopulation(cfg, pop, entra.SourceID)
		if err != nil {
			return nil, nil, err
		}
		src, err := entra.New(sc.Settings, sub)
		if err != nil {
			return nil, nil, err
		}
		if err := add(src, entra.FileLabel, sc.Format); err != nil {
			return nil, nil, err
		}
	}
	return streams, routers, nil
}

// startMetricsReporter logs events/s, bytes/s and average event size until
// the returned channel is closed. Interval 0 disables it.
func startMetricsReporter(engine *gen.Engine, routers []*sink.Router) chan struct{} {
	done := make(chan struct{})
	if metricsInterval <= 0 {
		return done
	}
	interval := time.Duration(metricsInterval * float64(time.Second))
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last sink.Stats
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				var cur sink.Stats
				for _, r := range routers {
					st := r.Stats()
					cur.Events += st.Events
					cur.Bytes += st.Bytes
				}
				de := cur.Events - last.Events
				db := cur.Bytes - last.Bytes
				avg := int64(0)
				if de > 0 {
					avg = db / de
				}
				logrus.Infof("Throughput: %.0f events/s, %.0f bytes/s, avg %d B/event (emitted %d)",
					float64(de)/interval.Seconds(), float64(db)/interval.Seconds(), avg, engine.Emitted())
				last = cur
			}
		}
	}()
	return done
}

func init() {
	generateCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides output.dir)")
	generateCmd.Flags().StringVar(&actorsFile, "actors", "", "Actor parquet file from the actors command")
	generateCmd.Flags().Int64Var(&maxEvents, "max-events", 0, "Stop after this many events (0 = unlimited)")
	generateCmd.Flags().Int64Var(&maxSeconds, "max-seconds", 0, "Stop once simulated time passes this many seconds after the start time, not wall-clock time (0 = unlimited)")
	generateCmd.Flags().IntVar(&genWorkers, "gen-workers", 1, "Generator workers (uniform mode only)")
	generateCmd.Flags().IntVar(&writerShards, "writer-shards", 1, "Writer goroutines per source")
	generateCmd.Flags().StringVar(&schedulerMode, "mode", "actor", "Scheduling mode (actor, uniform)")
	generateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resolved configuration and exit")
	generateCmd.Flags().Float64Var(&metricsInterval, "metrics-interval", 0, "Seconds between throughput reports (0 = off)")
}
