// Command auditbufd wires a buflog.Manager to a real file sink and runs
// it until interrupted. It is the lifecycle glue the spec treats as an
// external collaborator: open the file, build the Manager, start the
// worker, serve metrics, shut down cleanly on signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/corelog/auditbuf/buflog"
	"github.com/corelog/auditbuf/internal/config"
	"github.com/corelog/auditbuf/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults are used otherwise)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "auditbufd: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
	}

	f, err := sink.OpenFile(cfg.LogFilePath)
	if err != nil {
		log.Fatal("failed to open log file", zap.String("path", cfg.LogFilePath), zap.Error(err))
	}
	defer f.Close()

	metrics := buflog.NewMetrics()
	mgr := buflog.NewManager(cfg.BufferCapacity,
		buflog.WithGroupFsyncPeriod(cfg.GroupFsyncPeriod),
		buflog.WithFullDurability(cfg.FullDurability),
		buflog.WithLogger(log),
		buflog.WithMetrics(metrics),
	)
	mgr.SetSink(f)
	mgr.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server exited", zap.Error(err))
		}
	}()

	log.Info("auditbufd started",
		zap.String("log_file", cfg.LogFilePath),
		zap.Int("buffer_capacity", cfg.BufferCapacity),
		zap.Bool("full_durability", cfg.FullDurability),
		zap.String("metrics_addr", *metricsAddr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	mgr.Stop()
	log.Info("stopped")
}
