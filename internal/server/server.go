// Package server exposes the ingest, public health and private detail endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/fleet-status/internal/auth"
	"github.com/and161185/fleet-status/internal/config"
	"github.com/and161185/fleet-status/internal/detail"
	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/internal/events"
	"github.com/and161185/fleet-status/internal/health"
	"github.com/and161185/fleet-status/internal/ingest"
	"github.com/and161185/fleet-status/internal/server/middleware"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 5 * time.Second

// Reply texts of the ingest endpoint.
const (
	textOK             = "ok"
	textBadRequest     = "bad request"
	textNotFound       = "machine not found"
	textUnauthorized   = "unauthorized"
	textInternalServer = "internal server error"
)

type Server struct {
	Storage storage.Store
	Config  *config.ServerConfig
	Metrics *telemetry.Metrics

	Ingest *ingest.Service
	Health *health.Aggregator
	Detail *detail.Reader
}

// NewServer wires the ingest, health and detail services over one store.
func NewServer(store storage.Store, cfg *config.ServerConfig, metrics *telemetry.Metrics, publisher events.Publisher) (*Server, error) {
	registry, err := validator.RegistryFromNames(cfg.MetricSchemes)
	if err != nil {
		return nil, err
	}
	policy, err := health.PolicyByName(cfg.HealthPolicy)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &Server{
		Storage: store,
		Config:  cfg,
		Metrics: metrics,
		Ingest: ingest.NewService(store, registry,
			ingest.WithPublisher(publisher),
			ingest.WithMetrics(metrics),
			ingest.WithLogger(cfg.Logger),
			ingest.WithStoreTimeout(cfg.StoreTimeout),
		),
		Health: health.NewAggregator(store, registry,
			health.WithPolicy(policy),
			health.WithStaleAfter(cfg.StaleAfter),
			health.WithWorkers(cfg.ScanWorkers),
			health.WithStoreTimeout(cfg.StoreTimeout),
			health.WithLogger(cfg.Logger),
			health.WithMetrics(metrics),
		),
		Detail: detail.NewReader(store, detail.DefaultLimit, cfg.StoreTimeout),
	}, nil
}

// Router builds the chi router with the full middleware chain.
func (srv *Server) Router() (http.Handler, error) {
	trusted, err := middleware.TrustedCIDR(srv.Config.TrustedSubnet, srv.Config.TrustedProxies)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.Config.Logger))
	if srv.Metrics != nil {
		router.Use(srv.Metrics.Middleware)
	}
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware)

	router.Post("/log", srv.LogHandler)

	router.Group(func(r chi.Router) {
		r.Use(cors.Handler(srv.corsOptions()))
		r.Get("/public_info", srv.PublicInfoHandler)
		r.Options("/public_info", srv.PreflightHandler)
	})

	router.Group(func(r chi.Router) {
		r.Use(trusted)
		r.Post("/private_info", srv.PrivateInfoHandler)
	})

	router.Get("/ping", srv.PingHandler)
	if srv.Metrics != nil {
		router.Handle("/metrics", srv.Metrics.Handler())
	}
	return router, nil
}

func (srv *Server) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}
	if len(srv.Config.AllowedOrigins) > 0 {
		opts.AllowedOrigins = srv.Config.AllowedOrigins
	} else {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool { return true }
	}
	return opts
}

// Run serves until ctx is done, then shuts down gracefully and writes a final
// snapshot when the store supports it.
func (srv *Server) Run(ctx context.Context) error {
	router, err := srv.Router()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := &http.Server{
		Addr:              srv.Config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	snapshotDone := make(chan struct{})
	go func() {
		defer close(snapshotDone)
		srv.snapshotLoop(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		srv.Config.Logger.Infow("listening", "addr", srv.Config.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	srv.Config.Logger.Info("shutdown initiated")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		srv.Config.Logger.Errorw("http server shutdown error", "error", err)
	}
	<-snapshotDone
	srv.saveSnapshot(shutdownCtx)
	return nil
}

// snapshotLoop saves the store every StoreInterval seconds until ctx is done.
// A zero interval disables periodic saving.
func (srv *Server) snapshotLoop(ctx context.Context) {
	if _, ok := srv.Storage.(storage.Snapshotter); !ok || srv.Config.StoreInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(time.Duration(srv.Config.StoreInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.saveSnapshot(ctx)
		}
	}
}

func (srv *Server) saveSnapshot(ctx context.Context) {
	snap, ok := srv.Storage.(storage.Snapshotter)
	if !ok || srv.Config.FileStoragePath == "" {
		return
	}
	if err := snap.SaveToFile(ctx, srv.Config.FileStoragePath); err != nil {
		srv.Config.Logger.Errorw("failed to save snapshot", "path", srv.Config.FileStoragePath, "error", err)
	}
}

// LogHandler accepts one signed report.
func (srv *Server) LogHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		srv.Metrics.ObserveIngest(telemetry.OutcomeBadRequest, nil)
		writeText(w, http.StatusBadRequest, textBadRequest)
		return
	}

	report, err := ingest.DecodeRequest(body)
	if err != nil {
		srv.Metrics.ObserveIngest(telemetry.OutcomeBadRequest, nil)
		writeText(w, http.StatusBadRequest, textBadRequest)
		return
	}

	err = srv.Ingest.Ingest(r.Context(), report)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, textOK)
	case errors.Is(err, errs.ErrBadRequest):
		writeText(w, http.StatusBadRequest, textBadRequest)
	case errors.Is(err, errs.ErrMachineNotFound):
		writeText(w, http.StatusNotFound, textNotFound)
	case errors.Is(err, errs.ErrUnauthorized):
		writeText(w, http.StatusUnauthorized, textUnauthorized)
	default:
		writeText(w, http.StatusInternalServerError, textInternalServer)
	}
}

type publicInfo struct {
	Status model.Status `json:"status"`
	Since  string       `json:"since,omitempty"`
}

// PublicInfoHandler reports the fleet status and the age of the freshest sample.
func (srv *Server) PublicInfoHandler(w http.ResponseWriter, r *http.Request) {
	res, err := srv.Health.Compute(r.Context())
	if err != nil {
		writeText(w, http.StatusInternalServerError, textInternalServer)
		return
	}

	info := publicInfo{Status: res.Status}
	if res.HasSince {
		info.Since = health.FormatSince(res.Since)
	}
	srv.writeJSON(w, info)
}

// PreflightHandler answers OPTIONS requests the CORS layer did not treat as a
// preflight, e.g. ones without Access-Control-Request-Method.
func (srv *Server) PreflightHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

type privateInfoRequest struct {
	Password string `json:"password"`
}

// PrivateInfoHandler returns the recent history of every series to an
// administrator.
func (srv *Server) PrivateInfoHandler(w http.ResponseWriter, r *http.Request) {
	var req privateInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, textBadRequest)
		return
	}

	if err := auth.CheckPassword(srv.Config.AdminPasswordHash, req.Password); err != nil {
		srv.Config.Logger.Warnw("admin password rejected", "remote", r.RemoteAddr)
		writeText(w, http.StatusUnauthorized, textUnauthorized)
		return
	}

	machines, err := srv.Detail.Collect(r.Context())
	if err != nil {
		srv.Config.Logger.Errorw("failed to collect machine details", "error", err)
		writeText(w, http.StatusInternalServerError, textInternalServer)
		return
	}
	srv.writeJSON(w, machines)
}

// PingHandler checks the store connection.
func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := srv.Storage.Ping(ctx); err != nil {
		srv.Config.Logger.Errorw("storage ping failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		srv.Config.Logger.Errorw("failed to encode response", "error", err)
		writeText(w, http.StatusInternalServerError, textInternalServer)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		srv.Config.Logger.Warnw("failed to write response", "error", err)
	}
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, text)
}
