package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parkgate/internal/models"
)

type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

const zoneKeyPrefix = "parkgate:zones:gate:"

// ZoneCache keeps the per-gate zone listing served to attendant screens.
// Entries are dropped on every zone mutation and expire after TTL as a backstop.
type ZoneCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewZoneCache(cfg Config) (*ZoneCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newZoneCache(rdb, cfg.TTL), nil
}

func newZoneCache(client *redis.Client, ttl time.Duration) *ZoneCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ZoneCache{client: client, ttl: ttl}
}

// GetGateZones returns the cached listing. A miss is (nil, false, nil).
func (c *ZoneCache) GetGateZones(ctx context.Context, gateID string) ([]models.Zone, bool, error) {
	raw, err := c.client.Get(ctx, zoneKeyPrefix+gateID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}

	var zones []models.Zone
	if err := json.Unmarshal(raw, &zones); err != nil {
		return nil, false, fmt.Errorf("invalid cached zones: %w", err)
	}
	return zones, true, nil
}

func (c *ZoneCache) SetGateZones(ctx context.Context, gateID string, zones []models.Zone) error {
	raw, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("marshal zones: %w", err)
	}
	return c.client.Set(ctx, zoneKeyPrefix+gateID, raw, c.ttl).Err()
}

// InvalidateGates drops the listings of every given gate
func (c *ZoneCache) InvalidateGates(ctx context.Context, gateIDs ...string) error {
	if len(gateIDs) == 0 {
		return nil
	}
	keys := make([]string, len(gateIDs))
	for i, id := range gateIDs {
		keys[i] = zoneKeyPrefix + id
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *ZoneCache) Close() error {
	return c.client.Close()
}
