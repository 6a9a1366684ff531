// Command aetherflow-scheduler is the companion cron-trigger wrapper named
// in spec.md §1 as deliberately outside the runner's core. It reads a
// scheduler configuration document listing (cron expression, flow file)
// entries and invokes the runner once per due entry.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aetherflow/aetherflow/internal/observer"
	"github.com/aetherflow/aetherflow/internal/scheduler"
	"github.com/aetherflow/aetherflow/internal/settings"
)

func main() {
	sett := settings.Load(settings.Snapshot())
	logger := observer.SetupLogger(sett)

	configPath := os.Getenv("AETHERFLOW_SCHEDULER_CONFIG")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if configPath == "" {
		logger.Error("no scheduler config given: pass a path argument or set AETHERFLOW_SCHEDULER_CONFIG")
		os.Exit(1)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("read scheduler config", "error", err)
		os.Exit(1)
	}

	cfg, err := scheduler.ParseConfig(data)
	if err != nil {
		logger.Error("parse scheduler config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Config{Entries: cfg.Entries, Logger: logger}, time.Now())
	if err != nil {
		logger.Error("build scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler starting", "entries", len(cfg.Entries))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(observer.Registry, promhttp.HandlerOpts{}))

	addr := ":8081"
	if v := os.Getenv("AETHERFLOW_SCHEDULER_PORT"); v != "" {
		addr = ":" + v
	}
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("scheduler listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("scheduler http server error", "error", err)
		}
	}()

	tk := time.NewTicker(1 * time.Second)
	defer tk.Stop()

	for {
		select {
		case t := <-tk.C:
			sched.Tick(ctx, t)
		case <-ctx.Done():
			logger.Info("scheduler shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			server.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		}
	}
}
