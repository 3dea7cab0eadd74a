package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"parkgate/internal/config"
	"parkgate/internal/database"
	"parkgate/internal/logger"
	"parkgate/internal/occupancy"
	"parkgate/internal/repository"
)

var (
	clearExisting = pflag.Bool("clear", false, "Delete all parking data before seeding")
	dryRun        = pflag.Bool("dry-run", false, "Show what would be seeded without making changes")
	password      = pflag.String("password", "changeme", "Password for the seeded users")
)

// Seeder fills an empty database with a small parking site
type Seeder struct {
	db    *database.DB
	repos *repository.Repositories
	log   *slog.Logger
}

func main() {
	pflag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")
	log := logger.Get()
	log.Info("Starting seeder...")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	seeder := &Seeder{db: db, repos: repository.NewRepositories(db), log: log}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ds := newDataset(time.Now().UTC())
	if *dryRun {
		ds.describe(log)
		return
	}

	if *clearExisting {
		if err := seeder.clear(ctx); err != nil {
			logger.Fatal("Failed to clear existing data", "error", err)
		}
	}

	if err := seeder.Seed(ctx, ds, *password); err != nil {
		log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}

	log.Info("Seeding completed successfully!")
}

func (s *Seeder) clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		TRUNCATE audit_log, tickets, subscription_cars, subscriptions,
		         rush_hours, vacations, zones, gates, categories, users`)
	return err
}

// Seed inserts every record of ds that does not exist yet. Rows are keyed by
// their fixed ids, so running it twice is harmless.
func (s *Seeder) Seed(ctx context.Context, ds dataset, password string) error {
	ctx = logger.ContextWithRequestID(ctx, uuid.NewString())

	for i := range ds.categories {
		c := &ds.categories[i]
		existing, err := s.repos.Categories.GetByID(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
		if existing != nil {
			s.log.Info("Category exists, skipping", "category_id", c.ID)
			continue
		}
		if err := s.repos.Categories.Create(ctx, c); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}

	for i := range ds.gates {
		g := &ds.gates[i]
		existing, err := s.repos.Gates.GetByID(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("gate %s: %w", g.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := s.repos.Gates.Create(ctx, g); err != nil {
			return fmt.Errorf("gate %s: %w", g.ID, err)
		}
	}

	for i := range ds.zones {
		z := &ds.zones[i]
		existing, err := s.repos.Zones.GetByID(ctx, z.ID)
		if err != nil {
			return fmt.Errorf("zone %s: %w", z.ID, err)
		}
		if existing != nil {
			continue
		}
		*z = occupancy.Recompute(*z, 0, 0)
		if err := s.repos.Zones.Create(ctx, z); err != nil {
			return fmt.Errorf("zone %s: %w", z.ID, err)
		}
	}

	// Windows have generated ids; only seed them into empty tables
	rushHours, err := s.repos.Windows.ListRushHours(ctx)
	if err != nil {
		return fmt.Errorf("rush hours: %w", err)
	}
	if len(rushHours) == 0 {
		for i := range ds.rushHours {
			if err := s.repos.Windows.CreateRushHour(ctx, &ds.rushHours[i]); err != nil {
				return fmt.Errorf("rush hour: %w", err)
			}
		}
	}
	vacations, err := s.repos.Windows.ListVacations(ctx)
	if err != nil {
		return fmt.Errorf("vacations: %w", err)
	}
	if len(vacations) == 0 {
		for i := range ds.vacations {
			if err := s.repos.Windows.CreateVacation(ctx, &ds.vacations[i]); err != nil {
				return fmt.Errorf("vacation: %w", err)
			}
		}
	}

	for i := range ds.subscriptions {
		sub := &ds.subscriptions[i]
		exists, err := s.repos.Subscriptions.Exists(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("subscription %s: %w", sub.ID, err)
		}
		if exists {
			continue
		}
		if err := s.repos.Subscriptions.Save(ctx, sub); err != nil {
			return fmt.Errorf("subscription %s: %w", sub.ID, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	for i := range ds.users {
		u := &ds.users[i]
		existing, err := s.repos.Users.GetByUsername(ctx, u.Username)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		if existing != nil {
			continue
		}
		u.PasswordHash = string(hash)
		if err := s.repos.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		s.log.Info("Created user", "username", u.Username, "role", u.Role)
	}

	return nil
}
