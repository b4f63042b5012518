package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/analyzer"
	"github.com/stackaudit/stackaudit/scan"
	"github.com/stackaudit/stackaudit/store"
)

// AuthorizeFunc is the tenant-isolation capability supplied by the
// embedding platform: may the current request touch resources of the given
// account. The transport only enforces the verdict.
type AuthorizeFunc func(ctx context.Context, accountID string) bool

func AllowAll(ctx context.Context, accountID string) bool { return true }

type Dependencies struct {
	Scanner      scan.IScanClient
	Differential analyzer.IDifferentialClient
	Store        store.IScanStore
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Authorize       AuthorizeFunc
	Dependencies    Dependencies
}

// WebAPI is the thin HTTP transport over the scan and differential
// clients. It carries no business logic of its own.
type WebAPI struct {
	router *chi.Mux
	logger *logrus.Logger
	server *http.Server
	config Config
}

func NewWebAPI(logger *logrus.Logger, config Config) *WebAPI {
	if config.Authorize == nil {
		config.Authorize = AllowAll
	}

	api := &WebAPI{
		logger: logger,
		config: config,
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", api.handleHealth)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", api.handleCreateScan)
		r.Get("/scans", api.handleListScans)
		r.Post("/differentials", api.handleCreateDifferential)
		r.Get("/differentials/{differentialID}", api.handleGetDifferential)
	})

	api.router = router
	api.server = &http.Server{
		Addr:    config.Addr,
		Handler: router,
	}
	return api
}

func (api *WebAPI) Handler() http.Handler {
	return api.router
}

func (api *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		api.logger.Infof("Starting server on %s", api.server.Addr)
		serverErrors <- api.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		api.logger.Info("Shutdown initiated")

		timeout := api.config.ShutdownTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := api.server.Shutdown(ctx); err != nil {
			api.logger.Errorf("Graceful shutdown failed: %v", err)
			return api.server.Close()
		}
	}
	return nil
}

func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			logger.WithFields(logrus.Fields{
				"method":    request.Method,
				"path":      request.URL.Path,
				"remote_ip": request.RemoteAddr,
			}).Debug("Handling request")
			next.ServeHTTP(writer, request)
		})
	}
}
