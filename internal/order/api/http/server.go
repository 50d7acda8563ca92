package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"order-router/internal/order/api/http/handle"
	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/xpkg/config"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"

	brokermessage "order-router/internal/routing/adapter/broker_message"
	database "order-router/internal/routing/adapter/db"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrServerClosed = errors.New("Server closed")

type Params struct {
	Port    int
	Migrate bool
}

// Deps are the collaborators behind the HTTP routes.
type Deps struct {
	DB        interface{ IsAlive(ctx context.Context) error }
	Orders    core.IOrderRepo
	Stores    core.IStoreRepo
	Settings  core.ISettingsRepo
	Locker    core.ILocker
	Publisher core.IPublisher
	Registry  *prometheus.Registry
}

type Server struct {
	cfg    *config.Config
	params Params
	srv    *http.Server
	mylog  logger.Logger
	db     *db.DB
	mb     core.IPublisher
	ctx    context.Context
	appCtx context.Context
	mu     sync.Mutex
}

func NewServer(ctx, appCtx context.Context, cfg *config.Config, params Params, mylog logger.Logger) *Server {
	return &Server{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		params: params,
		mylog:  mylog,
	}
}

// Run connects the dependencies, registers routes and starts listening.
// It returns when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := s.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}

	handler := s.Configure()

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.params.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	mylog.WithGroup("details").With("port", s.params.Port, "rabbitmq", s.cfg.RMQ.Enabled).Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
		} else {
			s.mylog.Action("mb_closed").Info("Message broker closed")
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Action("db_closed").Info("Database closed")
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) initializeDatabase() error {
	d, err := db.Start(s.appCtx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = d

	if s.params.Migrate {
		if err := d.EnsureSchema(s.appCtx); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}
	return nil
}

// initializeRabbitMQ falls back to a no-op publisher when rabbitmq is
// disabled. Orders are routed even when the broker is unreachable.
func (s *Server) initializeRabbitMQ() error {
	if !s.cfg.RMQ.Enabled {
		s.mb = brokermessage.Noop{}
		s.mylog.Action("mb_disabled").Info("RabbitMQ is disabled, status updates will not be published")
		return nil
	}

	mb, err := brokermessage.New(s.ctx, s.cfg.RMQ, s.mylog, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	s.mylog.Action("mb_connected").Info("Successful message broker connection")
	return nil
}

// Configure wires the postgres repositories into the routes.
func (s *Server) Configure() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return Routes(Deps{
		DB:        s.db,
		Orders:    database.NewOrderRepo(s.db),
		Stores:    database.NewStoreRepo(s.db),
		Settings:  database.NewSettingsRepo(s.db),
		Locker:    database.NewLocker(s.db, core.AutoAssignLockKey),
		Publisher: s.mb,
		Registry:  reg,
	}, s.mylog)
}

// Routes registers every endpoint and wraps them with CORS and request
// logging.
func Routes(d Deps, mylog logger.Logger) http.Handler {
	var reg prometheus.Registerer
	if d.Registry != nil {
		reg = d.Registry
	}
	metrics := services.NewMetrics(reg)

	assignService := services.NewAssignService(d.Orders, d.Stores, d.Settings, d.Locker, d.Publisher, metrics, mylog)
	orderService := services.NewOrderService(d.Orders, d.Stores, d.Publisher, metrics, mylog)
	storeService := services.NewStoreService(d.Stores, mylog)
	settingsService := services.NewSettingsService(d.Settings, mylog)

	assignHandler := handle.NewAssignHandler(assignService, mylog)
	orderHandler := handle.NewOrderHandler(orderService, mylog)
	storeHandler := handle.NewStoreHandler(storeService, mylog)
	settingsHandler := handle.NewSettingsHandler(settingsService, mylog)

	mux := http.NewServeMux()

	mux.Handle("POST /assign-order", assignHandler.Assign())
	mux.Handle("POST /auto-assign-orders", assignHandler.AutoAssign())
	mux.Handle("POST /get-order", orderHandler.Get())

	mux.Handle("POST /orders", orderHandler.Create())
	mux.Handle("GET /orders", orderHandler.List())
	mux.Handle("GET /orders/stats", orderHandler.Stats())
	mux.Handle("PATCH /orders/{id}/status", orderHandler.UpdateStatus())

	mux.Handle("GET /stores", storeHandler.List())
	mux.Handle("POST /stores", storeHandler.Create())

	mux.Handle("GET /settings", settingsHandler.Get())
	mux.Handle("PUT /settings/auto-assign", settingsHandler.SetAutoAssign())

	if d.DB != nil {
		mux.Handle("GET /health", handle.Health(d.DB))
	}
	if d.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	return logger.Middleware(mylog, cors(mux))
}

// cors allows browser dashboards on any origin and answers preflights.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-request-id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
