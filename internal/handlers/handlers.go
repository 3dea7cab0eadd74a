package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/logger"
	"parkgate/internal/models"
	"parkgate/internal/search"
	"parkgate/internal/service"
)

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
}

type MasterAPI interface {
	ListGates(ctx context.Context) ([]models.Gate, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListZones(ctx context.Context, gateID string) ([]models.Zone, error)
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
}

type TicketAPI interface {
	Checkin(ctx context.Context, req *models.CheckinRequest) (*models.CheckinResponse, error)
	Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
}

// AdminAPI is implemented by service.AdminService
type AdminAPI interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, id string, req *models.CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListZones(ctx context.Context) ([]models.Zone, error)
	CreateZone(ctx context.Context, req *models.ZoneRequest) (*models.Zone, error)
	UpdateZone(ctx context.Context, id string, req *models.ZoneRequest) (*models.Zone, error)
	SetZoneOpen(ctx context.Context, id string, open bool) (*models.Zone, error)
	DeleteZone(ctx context.Context, id string) error

	ListGates(ctx context.Context) ([]models.Gate, error)
	CreateGate(ctx context.Context, req *models.GateRequest) (*models.Gate, error)
	UpdateGate(ctx context.Context, id string, req *models.GateRequest) (*models.Gate, error)
	DeleteGate(ctx context.Context, id string) error

	ListRushHours(ctx context.Context) ([]models.RushHour, error)
	CreateRushHour(ctx context.Context, req *models.RushHourRequest) (*models.RushHour, error)
	UpdateRushHour(ctx context.Context, id string, req *models.RushHourRequest) (*models.RushHour, error)
	DeleteRushHour(ctx context.Context, id string) error

	ListVacations(ctx context.Context) ([]models.Vacation, error)
	CreateVacation(ctx context.Context, req *models.VacationRequest) (*models.Vacation, error)
	UpdateVacation(ctx context.Context, id string, req *models.VacationRequest) (*models.Vacation, error)
	DeleteVacation(ctx context.Context, id string) error

	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
	CreateSubscription(ctx context.Context, req *models.SubscriptionRequest) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, req *models.SubscriptionRequest) (*models.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req *models.UserRequest) (*models.User, error)
	UpdateUser(ctx context.Context, id string, req *models.UserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error

	ParkingState(ctx context.Context) ([]models.ParkingStateEntry, error)
	AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error)
	TicketReport(ctx context.Context, q search.TicketQuery) (*search.TicketReport, error)
}

type Handlers struct {
	auth    AuthAPI
	master  MasterAPI
	tickets TicketAPI
	admin   AdminAPI
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		auth:    services.Auth,
		master:  services.Master,
		tickets: services.Tickets,
		admin:   services.Admin,
	}
}

// handleServiceError maps service errors to HTTP statuses. Unexpected errors
// are logged and reported as a generic message.
func handleServiceError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAdmissionDenied):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error(fallback, "error", err)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// Login - POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err, "Login failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}
