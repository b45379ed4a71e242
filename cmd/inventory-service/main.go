// cmd/inventory-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudscope/internal/aggregator"
	"cloudscope/internal/api"
	"cloudscope/internal/broker"
	"cloudscope/internal/collect"
	"cloudscope/internal/discovery"
	"cloudscope/pkg/config"
	"cloudscope/pkg/logger"
	"cloudscope/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	b := broker.New(log, broker.Principal{KeyFile: cfg.KeyFilePath}, cfg.MaxLifetime)
	identity := broker.DelegatedIdentity{
		TargetPrincipal: cfg.TargetIdentity,
		Scopes:          cfg.Scopes,
		Lifetime:        cfg.Lifetime,
		Delegates:       cfg.Delegates,
	}
	pipeline := aggregator.NewPipeline(log, b, identity, newCollectors(log),
		aggregator.WithTenantLimit(cfg.TenantConcurrency),
		aggregator.WithCollectorLimit(cfg.CollectorConcurrency),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	// Public service: allow cross-origin for development/tooling.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.Tracing("cloudscope"))
	r.Use(middleware.JWTAuth(cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })
	api.Routes(r, log, pipeline)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Best-effort warm run at startup so the first request isn't the first
	// time credentials and upstream reachability get exercised.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if result, err := pipeline.Run(ctx); err != nil {
			log.Warnw("startup run failed", "err", err)
		} else {
			log.Infow("startup run complete", "tenants", len(result.Reports), "partial", result.Partial())
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("inventory-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("inventory-service stopped")
}

// newCollectors wires the pipeline against the real upstream APIs.
func newCollectors(log logger.Sugared) aggregator.Factory {
	return func(ctx context.Context, caller *broker.Caller) (aggregator.Collectors, error) {
		tenants, err := discovery.NewService(ctx, log, caller)
		if err != nil {
			return aggregator.Collectors{}, err
		}
		compute, err := collect.NewComputeCollector(ctx, log, caller)
		if err != nil {
			return aggregator.Collectors{}, err
		}
		assets, err := collect.NewAssetCollector(ctx, log, caller)
		if err != nil {
			return aggregator.Collectors{}, err
		}
		metric, err := collect.NewMetricCollector(ctx, log, caller)
		if err != nil {
			return aggregator.Collectors{}, err
		}
		return aggregator.Collectors{Tenants: tenants, Compute: compute, Assets: assets, Metric: metric}, nil
	}
}
