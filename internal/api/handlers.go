// Package api is the thin HTTP surface over the aggregation core. The core
// stays callable as a plain service; handlers only translate envelopes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cloudscope/internal/aggregator"
	"cloudscope/internal/collect"
)

// Runner is the core surface the handlers call. *aggregator.Pipeline
// satisfies it; tests inject fakes.
type Runner interface {
	Run(ctx context.Context) (aggregator.Result, error)
	CollectAssets(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error)
}

type dataEnvelope struct {
	Success  bool                      `json:"success"`
	Data     []aggregator.TenantReport `json:"data"`
	Partial  bool                      `json:"partial,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

type assetsEnvelope struct {
	Success  bool                     `json:"success"`
	TenantID string                   `json:"tenantId"`
	Assets   []collect.ResourceRecord `json:"assets"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Routes mounts the API routes on r.
func Routes(r chi.Router, log *zap.SugaredLogger, runner Runner) {
	r.Get("/api/data", handleData(log, runner))
	r.Get("/api/assets/{tenantID}", handleAssets(log, runner))
}

// handleData runs the full pipeline. Fatal (authentication) errors map to a
// 500 error envelope; non-fatal degradations show up as partial/warnings.
func handleData(log *zap.SugaredLogger, runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := runner.Run(r.Context())
		if err != nil {
			log.Errorw("aggregation run failed", "err", err)
			writeJSON(w, errorEnvelope{Success: false, Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		writeJSON(w, dataEnvelope{
			Success:  true,
			Data:     result.Reports,
			Partial:  result.Partial(),
			Warnings: result.Warnings,
		}, http.StatusOK)
	}
}

func handleAssets(log *zap.SugaredLogger, runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		assets, err := runner.CollectAssets(r.Context(), tenantID)
		if err != nil {
			log.Errorw("asset collection failed", "tenant", tenantID, "err", err)
			writeJSON(w, errorEnvelope{Success: false, Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		writeJSON(w, assetsEnvelope{Success: true, TenantID: tenantID, Assets: assets}, http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
