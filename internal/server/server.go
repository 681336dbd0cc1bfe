// Package server monta o roteador HTTP do backend do portfólio.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/internal/reports"
	"portfolio-backend/middleware/ratelimit"
	"portfolio-backend/middleware/ratelimit/application"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps são as peças já construídas pelo main.
type Deps struct {
	Gate      *application.Gate
	Provider  llm.Provider
	Estimator *llm.TokenEstimator
	Portfolio *portfolio.Store
	Reports   *reports.Server
	Logger    *slog.Logger

	KeyHeader   string
	Concurrency ratelimit.ConcurrencyOptions
	CORSOrigin  string

	// Metrics e Gatherer nil desligam /metrics.
	Metrics  *Metrics
	Gatherer prometheus.Gatherer
}

type handlers struct {
	Deps
}

// New devolve o http.Handler com todas as rotas.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Provider == nil {
		d.Provider = llm.DemoProvider{}
	}
	if d.Portfolio == nil {
		d.Portfolio = portfolio.NewStaticStore(nil)
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(d.Logger, d.Metrics))
	r.Use(recoverer(d.Logger))
	r.Use(cors(d.CORSOrigin))
	r.Use(ratelimit.KeyMiddleware(ratelimit.DefaultKeyFunc(d.KeyHeader)))

	r.Get("/healthz", h.health)
	r.Get("/api/portfolio", h.portfolio)
	r.With(ratelimit.ConcurrencyMiddleware(d.Concurrency)).Post("/api/chat", h.chat)
	r.Get("/api/chat/limits", h.limits)
	r.Get("/api/reports/{filename}", h.report)

	if d.Metrics != nil && d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "Not found"})
	})
	return r
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) portfolio(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.Portfolio.Current().JSON())
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	if h.Reports == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": reports.ErrNotFound.Error()})
		return
	}
	h.Reports.ServeReport(w, r, chi.URLParam(r, "filename"))
}
