package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/logger"
	"parkgate/internal/middleware"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
	"parkgate/internal/pricing"
	"parkgate/internal/repository"
	"parkgate/internal/search"
)

// TicketSearcher queries the closed-ticket archive
type TicketSearcher interface {
	Search(ctx context.Context, q search.TicketQuery) (*search.TicketReport, error)
}

// AdminService covers the administrative CRUD. Every mutation is announced as
// an admin-update; zone mutations are also announced as zone-update.
type AdminService struct {
	repos   *repository.Repositories
	windows *windowLoader
	notify  *notifier
	archive TicketSearcher
	now     func() time.Time
}

func NewAdminService(repos *repository.Repositories, windows *windowLoader, notify *notifier, archive TicketSearcher) *AdminService {
	return &AdminService{repos: repos, windows: windows, notify: notify, archive: archive, now: time.Now}
}

func (s *AdminService) audit(ctx context.Context, action, targetType, targetID string) {
	update := models.AdminUpdate{
		ID:         uuid.New().String(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Timestamp:  s.now().UTC(),
	}
	if user, ok := middleware.UserFromContext(ctx); ok {
		update.AdminID = user.ID
	}
	s.notify.adminAction(ctx, update)
}

// publishZones announces the current snapshot of zones
func (s *AdminService) publishZones(ctx context.Context, zones ...models.Zone) {
	if len(zones) == 0 {
		return
	}
	windows, err := s.windows.load(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to load rate windows, special flag not refreshed", "error", err)
	} else {
		markSpecial(zones, windows, s.now())
	}
	for _, z := range zones {
		s.notify.zoneChanged(ctx, z)
	}
}

func storeError(err error, what string) error {
	switch {
	case repository.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", apperrors.ErrConflict, what)
	case repository.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s references a missing record or is still in use", apperrors.ErrConflict, what)
	}
	return fmt.Errorf("failed to save %s: %w", what, err)
}

func notFound(found bool, err error, what, id string) error {
	if err != nil {
		return storeError(err, what)
	}
	if !found {
		return fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, what, id)
	}
	return nil
}

func newID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return uuid.New().String()
}

// Categories

func (s *AdminService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.repos.Categories.List(ctx)
}

func (s *AdminService) CreateCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, error) {
	c := &models.Category{
		ID:          newID(req.ID),
		Name:        req.Name,
		Description: req.Description,
		RateNormal:  *req.RateNormal,
		RateSpecial: *req.RateSpecial,
	}
	if err := s.repos.Categories.Create(ctx, c); err != nil {
		return nil, storeError(err, "category")
	}
	s.audit(ctx, "category.created", "category", c.ID)
	return c, nil
}

// UpdateCategory changes rates of every zone in the category, so those zones
// are re-announced
func (s *AdminService) UpdateCategory(ctx context.Context, id string, req *models.CategoryRequest) (*models.Category, error) {
	c := &models.Category{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		RateNormal:  *req.RateNormal,
		RateSpecial: *req.RateSpecial,
	}
	found, err := s.repos.Categories.Update(ctx, c)
	if err := notFound(found, err, "category", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "category.updated", "category", id)
	s.announceCategoryZones(ctx, s.repos.Zones, id)
	return c, nil
}

type zoneLister interface {
	List(ctx context.Context) ([]models.Zone, error)
}

// announceCategoryZones re-publishes every zone priced by categoryID. A failed
// listing is logged; the category update itself has already been stored.
func (s *AdminService) announceCategoryZones(ctx context.Context, zones zoneLister, categoryID string) {
	all, err := zones.List(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to list zones for category update",
			"error", err,
			"category_id", categoryID)
		return
	}
	var affected []models.Zone
	for _, z := range all {
		if z.CategoryID == categoryID {
			affected = append(affected, z)
		}
	}
	s.publishZones(ctx, affected...)
}

func (s *AdminService) DeleteCategory(ctx context.Context, id string) error {
	found, err := s.repos.Categories.Delete(ctx, id)
	if err := notFound(found, err, "category", id); err != nil {
		return err
	}
	s.audit(ctx, "category.deleted", "category", id)
	return nil
}

// Zones

func (s *AdminService) ListZones(ctx context.Context) ([]models.Zone, error) {
	zones, err := s.repos.Zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	if windows, err := s.windows.load(ctx); err == nil {
		markSpecial(zones, windows, s.now())
	}
	return zones, nil
}

func validateZone(req *models.ZoneRequest) error {
	if req.ReservedSlots > req.TotalSlots {
		return fmt.Errorf("%w: reservedSlots exceeds totalSlots", apperrors.ErrValidation)
	}
	return nil
}

func (s *AdminService) CreateZone(ctx context.Context, req *models.ZoneRequest) (*models.Zone, error) {
	if err := validateZone(req); err != nil {
		return nil, err
	}
	open := true
	if req.Open != nil {
		open = *req.Open
	}
	zone := occupancy.Recompute(models.Zone{
		ID:            newID(req.ID),
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		GateIDs:       req.GateIDs,
		TotalSlots:    req.TotalSlots,
		ReservedSlots: req.ReservedSlots,
		Open:          open,
	}, 0, 0)
	if zone.GateIDs == nil {
		zone.GateIDs = []string{}
	}

	if err := s.repos.Zones.Create(ctx, &zone); err != nil {
		return nil, storeError(err, "zone")
	}
	s.audit(ctx, "zone.created", "zone", zone.ID)
	s.publishZones(ctx, zone)
	return &zone, nil
}

// UpdateZone rewrites the configuration and rebuilds the counters from the
// tickets still open in the zone
func (s *AdminService) UpdateZone(ctx context.Context, id string, req *models.ZoneRequest) (*models.Zone, error) {
	if err := validateZone(req); err != nil {
		return nil, err
	}
	zone, err := s.repos.Zones.Mutate(ctx, id, func(z models.Zone, open repository.OpenCounts) (models.Zone, bool, error) {
		z.Name = req.Name
		z.CategoryID = req.CategoryID
		if req.GateIDs != nil {
			z.GateIDs = req.GateIDs
		}
		z.TotalSlots = req.TotalSlots
		z.ReservedSlots = req.ReservedSlots
		if req.Open != nil {
			z.Open = *req.Open
		}
		return occupancy.Recompute(z, open.Visitors, open.Subscribers), true, nil
	})
	if err := notFound(zone != nil, err, "zone", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "zone.updated", "zone", id)
	s.publishZones(ctx, *zone)
	return zone, nil
}

func (s *AdminService) SetZoneOpen(ctx context.Context, id string, open bool) (*models.Zone, error) {
	zone, err := s.repos.Zones.Mutate(ctx, id, func(z models.Zone, _ repository.OpenCounts) (models.Zone, bool, error) {
		if z.Open == open {
			return z, false, nil
		}
		z.Open = open
		return z, true, nil
	})
	if err := notFound(zone != nil, err, "zone", id); err != nil {
		return nil, err
	}

	action := "zone.closed"
	if open {
		action = "zone.opened"
	}
	s.audit(ctx, action, "zone", id)
	s.publishZones(ctx, *zone)
	return zone, nil
}

func (s *AdminService) DeleteZone(ctx context.Context, id string) error {
	zone, err := s.repos.Zones.GetByID(ctx, id)
	if err := notFound(zone != nil, err, "zone", id); err != nil {
		return err
	}
	found, err := s.repos.Zones.Delete(ctx, id)
	if err := notFound(found, err, "zone", id); err != nil {
		return err
	}
	s.notify.invalidate(ctx, zone.GateIDs)
	s.audit(ctx, "zone.deleted", "zone", id)
	return nil
}

// Gates

func (s *AdminService) ListGates(ctx context.Context) ([]models.Gate, error) {
	return s.repos.Gates.List(ctx)
}

func (s *AdminService) CreateGate(ctx context.Context, req *models.GateRequest) (*models.Gate, error) {
	g := &models.Gate{ID: newID(req.ID), Name: req.Name, Location: req.Location, ZoneIDs: []string{}}
	if err := s.repos.Gates.Create(ctx, g); err != nil {
		return nil, storeError(err, "gate")
	}
	s.audit(ctx, "gate.created", "gate", g.ID)
	return g, nil
}

func (s *AdminService) UpdateGate(ctx context.Context, id string, req *models.GateRequest) (*models.Gate, error) {
	found, err := s.repos.Gates.Update(ctx, &models.Gate{ID: id, Name: req.Name, Location: req.Location})
	if err := notFound(found, err, "gate", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "gate.updated", "gate", id)
	return s.repos.Gates.GetByID(ctx, id)
}

// DeleteGate also detaches the gate from every zone that listed it
func (s *AdminService) DeleteGate(ctx context.Context, id string) error {
	gate, err := s.repos.Gates.GetByID(ctx, id)
	if err := notFound(gate != nil, err, "gate", id); err != nil {
		return err
	}

	var detached []models.Zone
	for _, zoneID := range gate.ZoneIDs {
		zone, err := s.repos.Zones.Mutate(ctx, zoneID, func(z models.Zone, _ repository.OpenCounts) (models.Zone, bool, error) {
			z.GateIDs = slices.DeleteFunc(slices.Clone(z.GateIDs), func(g string) bool { return g == id })
			return z, true, nil
		})
		if err != nil {
			return storeError(err, "zone")
		}
		if zone != nil {
			detached = append(detached, *zone)
		}
	}

	found, err := s.repos.Gates.Delete(ctx, id)
	if err := notFound(found, err, "gate", id); err != nil {
		return err
	}
	s.notify.invalidate(ctx, []string{id})
	s.audit(ctx, "gate.deleted", "gate", id)
	s.publishZones(ctx, detached...)
	return nil
}

// Rush hours and vacations

func (s *AdminService) ListRushHours(ctx context.Context) ([]models.RushHour, error) {
	return s.repos.Windows.ListRushHours(ctx)
}

func (s *AdminService) CreateRushHour(ctx context.Context, req *models.RushHourRequest) (*models.RushHour, error) {
	rh := &models.RushHour{ID: uuid.New().String(), WeekDay: req.WeekDay, From: req.From, To: req.To}
	if err := pricing.ValidateRushHour(*rh); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if err := s.repos.Windows.CreateRushHour(ctx, rh); err != nil {
		return nil, storeError(err, "rush hour")
	}
	s.audit(ctx, "rush-hour.created", "rush-hour", rh.ID)
	return rh, nil
}

func (s *AdminService) UpdateRushHour(ctx context.Context, id string, req *models.RushHourRequest) (*models.RushHour, error) {
	rh := &models.RushHour{ID: id, WeekDay: req.WeekDay, From: req.From, To: req.To}
	if err := pricing.ValidateRushHour(*rh); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	found, err := s.repos.Windows.UpdateRushHour(ctx, rh)
	if err := notFound(found, err, "rush hour", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "rush-hour.updated", "rush-hour", id)
	return rh, nil
}

func (s *AdminService) DeleteRushHour(ctx context.Context, id string) error {
	found, err := s.repos.Windows.DeleteRushHour(ctx, id)
	if err := notFound(found, err, "rush hour", id); err != nil {
		return err
	}
	s.audit(ctx, "rush-hour.deleted", "rush-hour", id)
	return nil
}

func (s *AdminService) ListVacations(ctx context.Context) ([]models.Vacation, error) {
	return s.repos.Windows.ListVacations(ctx)
}

func (s *AdminService) CreateVacation(ctx context.Context, req *models.VacationRequest) (*models.Vacation, error) {
	v := &models.Vacation{ID: uuid.New().String(), Name: req.Name, From: req.From, To: req.To}
	if err := pricing.ValidateVacation(*v); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if err := s.repos.Windows.CreateVacation(ctx, v); err != nil {
		return nil, storeError(err, "vacation")
	}
	s.audit(ctx, "vacation.created", "vacation", v.ID)
	return v, nil
}

func (s *AdminService) UpdateVacation(ctx context.Context, id string, req *models.VacationRequest) (*models.Vacation, error) {
	v := &models.Vacation{ID: id, Name: req.Name, From: req.From, To: req.To}
	if err := pricing.ValidateVacation(*v); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	found, err := s.repos.Windows.UpdateVacation(ctx, v)
	if err := notFound(found, err, "vacation", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "vacation.updated", "vacation", id)
	return v, nil
}

func (s *AdminService) DeleteVacation(ctx context.Context, id string) error {
	found, err := s.repos.Windows.DeleteVacation(ctx, id)
	if err := notFound(found, err, "vacation", id); err != nil {
		return err
	}
	s.audit(ctx, "vacation.deleted", "vacation", id)
	return nil
}

// Subscriptions

func (s *AdminService) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return s.repos.Subscriptions.List(ctx)
}

func parseInstant(field, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD, got %q", apperrors.ErrValidation, field, value)
}

func subscriptionFromRequest(id string, req *models.SubscriptionRequest) (*models.Subscription, error) {
	startsAt, err := parseInstant("startsAt", req.StartsAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseInstant("expiresAt", req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Before(startsAt) {
		return nil, fmt.Errorf("%w: expiresAt is before startsAt", apperrors.ErrValidation)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Subscription{
		ID:        id,
		UserName:  req.UserName,
		Category:  req.Category,
		Active:    active,
		Cars:      req.Cars,
		StartsAt:  startsAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AdminService) CreateSubscription(ctx context.Context, req *models.SubscriptionRequest) (*models.Subscription, error) {
	sub, err := subscriptionFromRequest(newID(req.ID), req)
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Subscriptions.Exists(ctx, sub.ID)
	if err != nil {
		return nil, storeError(err, "subscription")
	}
	if exists {
		return nil, fmt.Errorf("%w: subscription %s already exists", apperrors.ErrConflict, sub.ID)
	}
	if err := s.repos.Subscriptions.Save(ctx, sub); err != nil {
		return nil, storeError(err, "subscription")
	}
	s.audit(ctx, "subscription.created", "subscription", sub.ID)
	return sub, nil
}

func (s *AdminService) UpdateSubscription(ctx context.Context, id string, req *models.SubscriptionRequest) (*models.Subscription, error) {
	sub, err := subscriptionFromRequest(id, req)
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Subscriptions.Exists(ctx, id)
	if err := notFound(exists, err, "subscription", id); err != nil {
		return nil, err
	}
	if err := s.repos.Subscriptions.Save(ctx, sub); err != nil {
		return nil, storeError(err, "subscription")
	}
	s.audit(ctx, "subscription.updated", "subscription", id)
	return sub, nil
}

func (s *AdminService) DeleteSubscription(ctx context.Context, id string) error {
	found, err := s.repos.Subscriptions.Delete(ctx, id)
	if err := notFound(found, err, "subscription", id); err != nil {
		return err
	}
	s.audit(ctx, "subscription.deleted", "subscription", id)
	return nil
}

// Users

func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repos.Users.List(ctx)
}

func (s *AdminService) CreateUser(ctx context.Context, req *models.UserRequest) (*models.User, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", apperrors.ErrValidation)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}
	s.audit(ctx, "user.created", "user", user.ID)
	return user, nil
}

// UpdateUser keeps the stored password when req.Password is empty
func (s *AdminService) UpdateUser(ctx context.Context, id string, req *models.UserRequest) (*models.User, error) {
	user := &models.User{
		ID:       id,
		Username: req.Username,
		Role:     req.Role,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	found, err := s.repos.Users.Update(ctx, user)
	if err := notFound(found, err, "user", id); err != nil {
		return nil, err
	}
	s.audit(ctx, "user.updated", "user", id)
	return s.repos.Users.GetByID(ctx, id)
}

func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	if current, ok := middleware.UserFromContext(ctx); ok && current.ID == id {
		return fmt.Errorf("%w: cannot delete the signed-in user", apperrors.ErrConflict)
	}
	found, err := s.repos.Users.Delete(ctx, id)
	if err := notFound(found, err, "user", id); err != nil {
		return err
	}
	s.audit(ctx, "user.deleted", "user", id)
	return nil
}

// Reports

func (s *AdminService) ParkingState(ctx context.Context) ([]models.ParkingStateEntry, error) {
	zones, err := s.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Zones.CountOpenByZone(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tickets: %w", err)
	}

	entries := make([]models.ParkingStateEntry, len(zones))
	for i, z := range zones {
		c := counts[z.ID]
		entries[i] = models.ParkingStateEntry{
			Zone:            z,
			OpenTickets:     c.Visitors + c.Subscribers,
			SubscriberCount: c.Subscribers,
		}
	}
	return entries, nil
}

func (s *AdminService) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.repos.Audit.List(ctx, limit)
}

// TicketReport searches the closed-ticket archive
func (s *AdminService) TicketReport(ctx context.Context, q search.TicketQuery) (*search.TicketReport, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%w: ticket archive is disabled", apperrors.ErrUnavailable)
	}
	report, err := s.archive.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search ticket archive: %w", err)
	}
	return report, nil
}
