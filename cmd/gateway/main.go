// Synapse Gateway — fans knowledge-graph updates out to WebSocket
// subscribers and streams intelligence query results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marcus-qen/synapse/internal/config"
	"github.com/marcus-qen/synapse/internal/events"
	"github.com/marcus-qen/synapse/internal/gateway"
	"github.com/marcus-qen/synapse/internal/metrics"
	"github.com/marcus-qen/synapse/internal/query"
	"github.com/marcus-qen/synapse/internal/stats"
	"github.com/marcus-qen/synapse/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = shutdownTracing(shutdownCtx)
	}()

	bus := events.NewBus(256)

	gw, err := gateway.NewServer(gateway.Options{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		AvailableChannels: cfg.AvailableChannels,
		Executor:          &query.LocalExecutor{StepDelay: 50 * time.Millisecond},
		Bus:               bus,
		Logger:            logger.Named("gateway"),
	})
	if err != nil {
		logger.Fatal("failed to build gateway", zap.Error(err))
	}
	if err := gw.Start(); err != nil {
		logger.Fatal("failed to start gateway", zap.Error(err))
	}

	statsProvider := stats.NewRuntime(gw.Registry(), gw.Index())

	producers := gateway.NewProducerSet(bus, logger.Named("producers"))
	mustAdd := func(name, schedule string, emit func() (events.Event, error)) {
		if err := producers.Add(name, schedule, emit); err != nil {
			logger.Fatal("failed to register producer", zap.String("producer", name), zap.Error(err))
		}
	}

	mustAdd("performance-metrics", cfg.MetricsSchedule, func() (events.Event, error) {
		return events.Event{Type: events.MetricsSampled, Payload: statsProvider.Snapshot()}, nil
	})
	mustAdd("system-status", cfg.StatusSchedule, func() (events.Event, error) {
		return events.Event{Type: events.StatusReported, Payload: map[string]any{
			"status":      "operational",
			"version":     version,
			"connections": gw.Registry().Count(),
			"channels":    gw.Index().ChannelCount(),
			"timestamp":   time.Now().UTC(),
		}}, nil
	})
	if cfg.DemoFeed {
		// Stands in for the knowledge-graph engine's update feed when
		// running standalone.
		seq := 0
		mustAdd("demo-knowledge-feed", cfg.DemoFeedSchedule, func() (events.Event, error) {
			seq++
			return events.Event{Type: events.KnowledgeUpdated, Payload: map[string]any{
				"update_id":  seq,
				"entity":     fmt.Sprintf("entity-%d", seq%7),
				"change":     "relationship_added",
				"emitted_at": time.Now().UTC(),
			}}, nil
		})
	}
	producers.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q,"connections":%d}`, version, gw.Registry().Count())
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gw.Registry().List())
	})

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", cfg.ListenAddr),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Bool("demo_feed", cfg.DemoFeed),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	producers.Stop(5 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("gateway shutdown error", zap.Error(err))
	}
}
