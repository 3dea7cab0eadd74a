package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"parkgate/internal/cache"
	"parkgate/internal/config"
	"parkgate/internal/database"
	"parkgate/internal/messaging"
	"parkgate/internal/repository"
	"parkgate/internal/search"
	"parkgate/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db        *database.DB
	nats      *messaging.NATSClient
	zoneCache *cache.ZoneCache
	repos     *repository.Repositories
	services  *service.Services
	handlers  *Handlers
	subs      []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	var archive *search.TicketArchive
	var indexer TicketIndexer
	if cfg.Elasticsearch.Enabled {
		archive, err = search.NewTicketArchive(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, closed tickets will not be archived", "error", err)
		} else {
			indexer = archive
		}
	}

	// corrections made by the reconciliation job must drop cached gate listings too
	var zoneCache *cache.ZoneCache
	if cfg.Redis.Enabled {
		zoneCache, err = cache.NewZoneCache(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, zone cache will not be invalidated", "error", err)
			zoneCache = nil
		}
	}

	return &ConsumerService{
		db:        db,
		nats:      natsClient,
		zoneCache: zoneCache,
		repos:     repos,
		services:  service.NewServices(cfg, repos, natsClient, zoneCache, archive),
		handlers:  NewHandlers(repos.Audit, indexer),
	}, nil
}

// Services exposes the domain services for background jobs
func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	routes := []struct {
		subject string
		handler messaging.Handler
	}{
		{messaging.SubjectAdminUpdate, cs.handlers.HandleAdminUpdate},
		{messaging.SubjectTicketClosed, cs.handlers.HandleTicketClosed},
	}
	for _, r := range routes {
		sub, err := cs.nats.SubscribeQueue(r.subject, queueGroup, r.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully")
	return nil
}

// Shutdown closes subscriptions without unsubscribing so durable positions
// survive a restart
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Warn("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.zoneCache != nil {
		if err := cs.zoneCache.Close(); err != nil {
			slog.Warn("Error closing redis connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
