package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/hazard_map/config"
	deps "github.com/bwise1/hazard_map/internal/debs"
	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/metrics"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
)

// Bodies may carry an image up to the configured limit, so only the
// headers get a short deadline. The write deadline also covers analysis.
const (
	defaultIdleTimeout       = time.Minute
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 2 * time.Minute
	defaultWriteTimeout      = 3 * time.Minute
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

type API struct {
	Server  *http.Server
	Config  *config.Config
	Deps    *deps.Dependencies
	DB      *pgxpool.Pool
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// NewServer builds the HTTP server. Call it before Serve and Shutdown run
// on separate goroutines.
func (api *API) NewServer() *http.Server {
	api.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		Handler:           api.setUpServerHandler(),
	}
	return api.Server
}

func (api *API) Serve() error {
	if api.Server == nil {
		api.NewServer()
	}
	api.Logger.Info("http server listening", "addr", api.Server.Addr)
	return api.Server.ListenAndServe()
}

func (api *API) setUpServerHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	if api.Metrics != nil {
		mux.Use(api.Metrics.Instrument)
	}
	mux.Use(cors.New(cors.Options{
		AllowedOrigins:   api.Config.CorsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", values.HeaderRequestSource, values.HeaderRequestID},
		ExposedHeaders:   []string{values.HeaderRequestID},
		AllowCredentials: true,
	}).Handler)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if api.Metrics != nil {
		mux.Handle("/metrics", api.Metrics.Handler())
	}
	mux.With(api.OptionalLogin).Get("/ws", api.ServeWebSocket)

	mux.Group(func(r chi.Router) {
		r.Use(RequestTracing)
		r.Mount("/reports", api.ReportRoutes())
		r.Mount("/images", api.ImageRoutes())
		r.Mount("/points", api.PointRoutes())
		r.Mount("/users", api.UserRoutes())
	})

	return mux
}

// publish pushes ev to websocket subscribers when a hub is running.
func (api *API) publish(ev model.ReportEvent) {
	if api.Deps == nil || api.Deps.WebSocket == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	api.Deps.WebSocket.PublishReportEvent(ev)
}

func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	return api.Server.Shutdown(ctx)
}
