package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parkgate/internal/cache"
	"parkgate/internal/config"
	"parkgate/internal/database"
	"parkgate/internal/handlers"
	"parkgate/internal/logger"
	"parkgate/internal/messaging"
	"parkgate/internal/metrics"
	"parkgate/internal/middleware"
	"parkgate/internal/models"
	"parkgate/internal/realtime"
	"parkgate/internal/repository"
	"parkgate/internal/search"
	"parkgate/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router    *gin.Engine
	config    *config.Config
	db        *database.DB
	bus       messaging.Bus
	zoneCache *cache.ZoneCache
	archive   *search.TicketArchive
	hub       *realtime.Hub
	stopRelay func()
	services  *service.Services
	repos     *repository.Repositories
}

// NewServer connects every backing service and builds the router. Redis and
// Elasticsearch are optional; NATS falls back to an in-process bus when
// disabled.
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	var bus messaging.Bus
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "error", err)
		}
		bus = natsClient
	} else {
		logger.Get().Info("NATS disabled, using in-process bus")
		bus = messaging.NewLocalBus()
	}

	var zoneCache *cache.ZoneCache
	if cfg.Redis.Enabled {
		zoneCache, err = cache.NewZoneCache(cfg.Redis)
		if err != nil {
			logger.Get().Warn("Redis unavailable, zone cache disabled", "error", err)
			zoneCache = nil
		}
	}

	var archive *search.TicketArchive
	if cfg.Elasticsearch.Enabled {
		archive, err = search.NewTicketArchive(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, ticket reports disabled", "error", err)
			archive = nil
		}
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(cfg, repos, bus, zoneCache, archive)

	hub := realtime.NewHub(cfg.WebSocket)
	stopRelay, err := hub.Relay(bus)
	if err != nil {
		logger.Fatal("Failed to relay live updates", "error", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Logger())
	router.Use(metrics.Middleware())

	server := &Server{
		router:    router,
		config:    cfg,
		db:        db,
		bus:       bus,
		zoneCache: zoneCache,
		archive:   archive,
		hub:       hub,
		stopRelay: stopRelay,
		services:  services,
		repos:     repos,
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)
	auth := middleware.BearerAuth(s.services.Auth)

	api := s.router.Group(s.config.BasePath)
	api.Use(middleware.Timeout(s.config.RequestTimeout))
	{
		api.POST("/auth/login", h.Login)

		// Справочники доступны без авторизации, как и экран въезда
		master := api.Group("/master")
		{
			master.GET("/gates", h.ListGates)
			master.GET("/zones", h.ListZones)
			master.GET("/categories", h.ListCategories)
		}
		api.GET("/subscriptions/:id", h.GetSubscription)
		api.POST("/tickets/checkin", h.Checkin)

		staff := api.Group("", auth, middleware.RequireRole(models.RoleEmployee, models.RoleAdmin))
		{
			staff.POST("/tickets/checkout", h.Checkout)
			staff.GET("/tickets/:id", h.GetTicket)
		}

		admin := api.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/categories", h.AdminListCategories)
			admin.POST("/categories", h.CreateCategory)
			admin.PUT("/categories/:id", h.UpdateCategory)
			admin.DELETE("/categories/:id", h.DeleteCategory)

			admin.GET("/zones", h.AdminListZones)
			admin.POST("/zones", h.CreateZone)
			admin.PUT("/zones/:id", h.UpdateZone)
			admin.DELETE("/zones/:id", h.DeleteZone)
			admin.PUT("/zones/:id/open", h.SetZoneOpen)

			admin.GET("/gates", h.AdminListGates)
			admin.POST("/gates", h.CreateGate)
			admin.PUT("/gates/:id", h.UpdateGate)
			admin.DELETE("/gates/:id", h.DeleteGate)

			admin.GET("/rush-hours", h.ListRushHours)
			admin.POST("/rush-hours", h.CreateRushHour)
			admin.PUT("/rush-hours/:id", h.UpdateRushHour)
			admin.DELETE("/rush-hours/:id", h.DeleteRushHour)

			admin.GET("/vacations", h.ListVacations)
			admin.POST("/vacations", h.CreateVacation)
			admin.PUT("/vacations/:id", h.UpdateVacation)
			admin.DELETE("/vacations/:id", h.DeleteVacation)

			admin.GET("/subscriptions", h.ListSubscriptions)
			admin.POST("/subscriptions", h.CreateSubscription)
			admin.PUT("/subscriptions/:id", h.UpdateSubscription)
			admin.DELETE("/subscriptions/:id", h.DeleteSubscription)

			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.PUT("/users/:id", h.UpdateUser)
			admin.DELETE("/users/:id", h.DeleteUser)

			admin.GET("/tickets", h.ListTickets)
			admin.GET("/audit-log", h.AuditLog)
			admin.GET("/reports/parking-state", h.ParkingState)
			admin.GET("/reports/tickets", h.TicketReport)
		}
	}

	s.router.GET("/ws", s.hub.Serve)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	db := s.db.HealthCheck(ctx)

	status := http.StatusOK
	if db.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	var archive archiveChecker
	if s.archive != nil {
		archive = s.archive
	}

	c.JSON(status, gin.H{
		"status":           db.Status,
		"service":          "parkgate-api",
		"database":         db,
		"websocketClients": s.hub.ClientCount(),
		"zoneCache":        s.zoneCache != nil,
		"ticketArchive":    archiveStatus(ctx, archive),
	})
}

type archiveChecker interface {
	HealthCheck(ctx context.Context) error
}

// archiveStatus reports the ticket archive as disabled, healthy or
// unhealthy. The archive only backs reports, so it never fails /health.
func archiveStatus(ctx context.Context, archive archiveChecker) string {
	if archive == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := archive.HealthCheck(ctx); err != nil {
		logger.WithContext(ctx).Warn("Ticket archive health check failed", "error", err)
		return "unhealthy"
	}
	return "healthy"
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	return s.router.Run(":" + s.config.Port)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Reconcile runs one reconciliation pass. The API runs it on startup so
// counters are consistent before the first check-in.
func (s *Server) Reconcile(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	ids, err := s.services.Reconcile.ReconcileAll(ctx)
	if err != nil {
		logger.Get().Error("Startup reconciliation failed", "error", err)
		return
	}
	if len(ids) > 0 {
		logger.Get().Warn("Startup reconciliation corrected zones", "zones", ids)
	}
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.stopRelay != nil {
		s.stopRelay()
	}
	s.hub.Close()

	if err := s.bus.Close(); err != nil {
		logger.Get().Error("Error closing message bus", "error", err)
	}
	if s.zoneCache != nil {
		if err := s.zoneCache.Close(); err != nil {
			logger.Get().Error("Error closing redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
