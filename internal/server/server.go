// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/api"
	"github.com/prajukk/backed-traffic/api/middleware"
	"github.com/prajukk/backed-traffic/api/ws"
	"github.com/prajukk/backed-traffic/internal/analytics"
	"github.com/prajukk/backed-traffic/internal/bus"
	"github.com/prajukk/backed-traffic/internal/config"
	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/database"
	"github.com/prajukk/backed-traffic/internal/monitoring"
	"github.com/prajukk/backed-traffic/internal/mqtt"
	"github.com/prajukk/backed-traffic/internal/repository/postgres"
	"github.com/prajukk/backed-traffic/internal/repository/timescale"
	"github.com/prajukk/backed-traffic/internal/simulator"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// Server wires the stores, coordinator, aggregator and HTTP surface
// together and owns their lifecycles.
type Server struct {
	config     *config.Config
	httpServer *http.Server

	appDB       database.DB
	timescaleDB database.DB
	redisClient *redis.Client
	ingest      *mqtt.Ingest

	cancelBackground context.CancelFunc
}

func New(cfg *config.Config) (*Server, error) {
	appDB, err := database.NewPostgresDB(cfg.Database.AppDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to app database: %w", err)
	}

	timescaleDB, err := database.NewTimescaleDB(cfg.Database.TimescaleDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to timescale database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		nuts.L.Warnf("[Server] Redis unavailable, dashboard caching disabled: %v", err)
		redisClient = nil
	}

	cameraRepo := postgres.NewCameraRepository(appDB)
	signalRepo := postgres.NewSignalRepository(appDB)
	analyticsRepo, err := timescale.NewAnalyticsRepository(timescaleDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analytics store: %w", err)
	}

	fanout := bus.New()
	aggregator := analytics.New(analyticsRepo, fanout, 256)
	coord := coordinator.New(cameraRepo, signalRepo, analyticsRepo, fanout, aggregator, cfg.Auth.DeviceAPIKey)

	service := trafficservice.New(
		cameraRepo, signalRepo, analyticsRepo,
		coord, aggregator,
		redisClient, cfg.Redis.CacheTTL,
	)
	if err := service.Validate(); err != nil {
		return nil, err
	}

	monitor := monitoring.NewService(monitoring.Config{})
	coord.Cleanup().OnCleanup("camera.deleted", func(id string) {
		monitor.RecordEvent("camera.deleted", map[string]string{"id": id})
	})
	coord.Cleanup().OnCleanup("signal.deleted", func(id string) {
		monitor.RecordEvent("signal.deleted", map[string]string{"id": id})
	})

	backgroundCtx, cancel := context.WithCancel(context.Background())
	go aggregator.Run(backgroundCtx)

	if cfg.Simulator.Enabled {
		sim := simulator.New(cameraRepo, signalRepo, coord, cfg.Simulator.Interval)
		if cfg.Simulator.Seed {
			if err := sim.Seed(backgroundCtx); err != nil {
				nuts.L.Warnf("[Server] Demo seed failed: %v", err)
			}
		}
		go sim.Run(backgroundCtx)
		nuts.L.Infof("[Server] Telemetry simulator enabled (interval %s)", cfg.Simulator.Interval)
	}

	var ingest *mqtt.Ingest
	if cfg.MQTT.Broker != "" {
		ingest, err = mqtt.NewIngest(cfg.MQTT, coord)
		if err != nil {
			nuts.L.Warnf("[Server] MQTT ingest unavailable: %v", err)
		} else if err := ingest.Subscribe(); err != nil {
			nuts.L.Warnf("[Server] MQTT subscribe failed: %v", err)
			ingest.Close()
			ingest = nil
		}
	}

	auth := middleware.NewAuthMiddleware(middleware.AuthConfig{JWTSecret: cfg.Auth.JWTSecret})
	live := ws.NewHandler(fanout, coord, service, auth, cfg.CORS.AllowedOrigin)

	router := api.NewRouter(api.RouterConfig{
		Service:       service,
		Auth:          auth,
		Live:          live,
		AllowedOrigin: cfg.CORS.AllowedOrigin,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:           cfg,
		httpServer:       httpServer,
		appDB:            appDB,
		timescaleDB:      timescaleDB,
		redisClient:      redisClient,
		ingest:           ingest,
		cancelBackground: cancel,
	}, nil
}

// Start begins serving HTTP requests. Blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start() error {
	nuts.L.Infof("[Server] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops background tasks and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	nuts.L.Info("[Server] Shutting down")
	s.cancelBackground()

	if s.ingest != nil {
		s.ingest.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			nuts.L.Warnf("[Server] Redis close error: %v", err)
		}
	}
	if err := s.appDB.Close(); err != nil {
		nuts.L.Warnf("[Server] App DB close error: %v", err)
	}
	if err := s.timescaleDB.Close(); err != nil {
		nuts.L.Warnf("[Server] Timescale close error: %v", err)
	}
	return nil
}
