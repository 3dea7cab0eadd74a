package repository

import (
	"errors"

	"github.com/lib/pq"

	"parkgate/internal/database"
)

type Repositories struct {
	Users         *UserRepository
	Categories    *CategoryRepository
	Gates         *GateRepository
	Zones         *ZoneRepository
	Windows       *WindowRepository
	Subscriptions *SubscriptionRepository
	Tickets       *TicketRepository
	Audit         *AuditRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Categories:    NewCategoryRepository(db),
		Gates:         NewGateRepository(db),
		Zones:         NewZoneRepository(db),
		Windows:       NewWindowRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Tickets:       NewTicketRepository(db),
		Audit:         NewAuditRepository(db),
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// IsUniqueViolation reports a duplicate key error from postgres
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports a missing or still-referenced row
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
