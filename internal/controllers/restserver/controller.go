// Package restserver serves the recent acoustic samples, their summaries and
// the Prometheus metrics over HTTP.
package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/curle/internal/log"
	"github.com/chrissnell/curle/internal/metrics"
	"github.com/chrissnell/curle/internal/storage"
	"github.com/chrissnell/curle/internal/storage/memory"
	"github.com/chrissnell/curle/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StreamSource is the read side of a buffering backend
type StreamSource interface {
	Streams() []storage.Stream
	Records(name string, limit int) ([]storage.Record, error)
	Summarize(name string, column int) (memory.Summary, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	source     StreamSource
	health     *storage.HealthManager
	metrics    *metrics.Collectors
	logger     *zap.SugaredLogger
	httpLog    *log.HTTPLog
	handlers   *Handlers
}

// NewController creates a new REST server controller. health and m may be nil.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, source StreamSource, health *storage.HealthManager, m *metrics.Collectors, logger *zap.SugaredLogger) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("the REST server needs the memory storage backend")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		source:     source,
		health:     health,
		metrics:    m,
		logger:     logger,
		httpLog:    log.NewHTTPLog(log.HTTPLogCapacity),
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listenAddr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = config.DefaultRESTPort
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.httpLog, c.logger))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/streams", c.handlers.GetStreams).Methods(http.MethodGet)
	api.HandleFunc("/streams/{stream}/records", c.handlers.GetRecords).Methods(http.MethodGet)
	api.HandleFunc("/streams/{stream}/summary", c.handlers.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/health", c.handlers.GetHealth).Methods(http.MethodGet)
	api.HandleFunc("/logs/http", c.handlers.GetHTTPLogs).Methods(http.MethodGet)

	if c.metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(c.metrics.Registry, promhttp.HandlerOpts{}))
	}

	return router
}

// Handler returns the router, for tests and embedding
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}
