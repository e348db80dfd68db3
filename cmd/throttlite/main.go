package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/throttlite/throttlite/internal/auth"
	"github.com/throttlite/throttlite/internal/config"
	"github.com/throttlite/throttlite/internal/gateway"
	"github.com/throttlite/throttlite/internal/obs"
	"github.com/throttlite/throttlite/internal/throttle"
)

func main() {

	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	simulate := flag.Bool("simulate", false, "run an in-process load simulation and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel, cfg.Observability.LogFile)
	logger.Info().Int64("window", cfg.Throttle.DefaultWindow).Msg("Setup logger")

	if *simulate {
		runSimulation(logger, cfg.Throttle.DefaultWindow)
		return
	}

	reg := prometheus.NewRegistry()

	// engine + metrics reference each other: the tracked-keys gauge reads
	// KeyCount, the engine's observer feeds the decision counter
	var engine *throttle.Throttler
	metrics := obs.NewMetrics(reg, func() int {
		if engine == nil {
			return 0
		}
		return engine.KeyCount()
	})

	decisionLog := obs.DecisionLogger(logger)
	decisionCount := metrics.DecisionObserver()
	engine = throttle.New(cfg.Throttle.DefaultWindow, throttle.WithObserver(func(d throttle.Decision) {
		decisionLog(d)
		decisionCount(d)
	}))
	metrics.WindowSeconds.Set(float64(cfg.Throttle.DefaultWindow))

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v0.1.0"))
	})

	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	api := gateway.NewAPI(engine, func(window int64) {
		metrics.WindowSeconds.Set(float64(window))
		logger.Info().Int64("window", window).Msg("window updated")
	})
	api.Register(mux)

	authStore := auth.NewStatic(cfg.Auth)

	promPath := cfg.Observability.PrometheusPath
	skip := map[string]struct{}{
		"/health":  {},
		"/version": {},
		promPath:   {},
	}

	mws := []gateway.Middleware{
		obs.Logger(logger),
		gateway.BodyLimit(cfg.Server.MaxBody()),
		authStore.Middleware(skip),
		metrics.Middleware(skip),
	}

	if cfg.Limits.ProtectAPI {
		// a second, independent engine keyed by API key ID; contention on
		// one never touches the other
		guard := throttle.New(cfg.Limits.APIWindow)
		mws = append(mws, gateway.Throttle(guard, skip, nil, func(string) {
			metrics.APIThrottled.Inc()
		}))
	}

	handler := gateway.Chain(mux, mws...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	if cfg.Throttle.CleanupIntervalS > 0 {
		j := throttle.Janitor{
			Interval:  cfg.Throttle.CleanupInterval(),
			MaxKeys:   cfg.Throttle.MaxKeys,
			Retention: cfg.Throttle.RetentionS,
		}
		go j.Run(janitorCtx, engine, logger)
	}

	// start
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopJanitor()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Printf("bye")
}
