package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parkgate/internal/models"
	"parkgate/internal/search"
)

func listHandler[T any](fallback string, fn func(context.Context) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := fn(c.Request.Context())
		if err != nil {
			handleServiceError(c, err, fallback)
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, items)
	}
}

func createHandler[Req, Resp any](fallback string, fn func(context.Context, *Req) (Resp, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		resp, err := fn(c.Request.Context(), &req)
		if err != nil {
			handleServiceError(c, err, fallback)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func updateHandler[Req, Resp any](fallback string, fn func(context.Context, string, *Req) (Resp, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		resp, err := fn(c.Request.Context(), c.Param("id"), &req)
		if err != nil {
			handleServiceError(c, err, fallback)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func deleteHandler(fallback string, fn func(context.Context, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context(), c.Param("id")); err != nil {
			handleServiceError(c, err, fallback)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Categories - /admin/categories

func (h *Handlers) AdminListCategories(c *gin.Context) {
	listHandler("Failed to list categories", h.admin.ListCategories)(c)
}

func (h *Handlers) CreateCategory(c *gin.Context) {
	createHandler("Failed to create category", h.admin.CreateCategory)(c)
}

func (h *Handlers) UpdateCategory(c *gin.Context) {
	updateHandler("Failed to update category", h.admin.UpdateCategory)(c)
}

func (h *Handlers) DeleteCategory(c *gin.Context) {
	deleteHandler("Failed to delete category", h.admin.DeleteCategory)(c)
}

// Zones - /admin/zones

func (h *Handlers) AdminListZones(c *gin.Context) {
	listHandler("Failed to list zones", h.admin.ListZones)(c)
}

func (h *Handlers) CreateZone(c *gin.Context) {
	createHandler("Failed to create zone", h.admin.CreateZone)(c)
}

func (h *Handlers) UpdateZone(c *gin.Context) {
	updateHandler("Failed to update zone", h.admin.UpdateZone)(c)
}

func (h *Handlers) DeleteZone(c *gin.Context) {
	deleteHandler("Failed to delete zone", h.admin.DeleteZone)(c)
}

// SetZoneOpen - PUT /admin/zones/:id/open
// Открыть или закрыть зону для въезда
func (h *Handlers) SetZoneOpen(c *gin.Context) {
	var req models.SetZoneOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	zone, err := h.admin.SetZoneOpen(c.Request.Context(), c.Param("id"), *req.Open)
	if err != nil {
		handleServiceError(c, err, "Failed to update zone")
		return
	}
	c.JSON(http.StatusOK, zone)
}

// Gates - /admin/gates

func (h *Handlers) AdminListGates(c *gin.Context) {
	listHandler("Failed to list gates", h.admin.ListGates)(c)
}

func (h *Handlers) CreateGate(c *gin.Context) {
	createHandler("Failed to create gate", h.admin.CreateGate)(c)
}

func (h *Handlers) UpdateGate(c *gin.Context) {
	updateHandler("Failed to update gate", h.admin.UpdateGate)(c)
}

func (h *Handlers) DeleteGate(c *gin.Context) {
	deleteHandler("Failed to delete gate", h.admin.DeleteGate)(c)
}

// Rush hours and vacations

func (h *Handlers) ListRushHours(c *gin.Context) {
	listHandler("Failed to list rush hours", h.admin.ListRushHours)(c)
}

func (h *Handlers) CreateRushHour(c *gin.Context) {
	createHandler("Failed to create rush hour", h.admin.CreateRushHour)(c)
}

func (h *Handlers) UpdateRushHour(c *gin.Context) {
	updateHandler("Failed to update rush hour", h.admin.UpdateRushHour)(c)
}

func (h *Handlers) DeleteRushHour(c *gin.Context) {
	deleteHandler("Failed to delete rush hour", h.admin.DeleteRushHour)(c)
}

func (h *Handlers) ListVacations(c *gin.Context) {
	listHandler("Failed to list vacations", h.admin.ListVacations)(c)
}

func (h *Handlers) CreateVacation(c *gin.Context) {
	createHandler("Failed to create vacation", h.admin.CreateVacation)(c)
}

func (h *Handlers) UpdateVacation(c *gin.Context) {
	updateHandler("Failed to update vacation", h.admin.UpdateVacation)(c)
}

func (h *Handlers) DeleteVacation(c *gin.Context) {
	deleteHandler("Failed to delete vacation", h.admin.DeleteVacation)(c)
}

// Subscriptions - /admin/subscriptions

func (h *Handlers) ListSubscriptions(c *gin.Context) {
	listHandler("Failed to list subscriptions", h.admin.ListSubscriptions)(c)
}

func (h *Handlers) CreateSubscription(c *gin.Context) {
	createHandler("Failed to create subscription", h.admin.CreateSubscription)(c)
}

func (h *Handlers) UpdateSubscription(c *gin.Context) {
	updateHandler("Failed to update subscription", h.admin.UpdateSubscription)(c)
}

func (h *Handlers) DeleteSubscription(c *gin.Context) {
	deleteHandler("Failed to delete subscription", h.admin.DeleteSubscription)(c)
}

// Users - /admin/users

func (h *Handlers) ListUsers(c *gin.Context) {
	listHandler("Failed to list users", h.admin.ListUsers)(c)
}

func (h *Handlers) CreateUser(c *gin.Context) {
	createHandler("Failed to create user", h.admin.CreateUser)(c)
}

func (h *Handlers) UpdateUser(c *gin.Context) {
	updateHandler("Failed to update user", h.admin.UpdateUser)(c)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	deleteHandler("Failed to delete user", h.admin.DeleteUser)(c)
}

// Reports

// ParkingState - GET /admin/reports/parking-state
func (h *Handlers) ParkingState(c *gin.Context) {
	listHandler("Failed to build parking state", h.admin.ParkingState)(c)
}

// AuditLog - GET /admin/audit-log?limit=
func (h *Handlers) AuditLog(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	entries, err := h.admin.AuditLog(c.Request.Context(), limit)
	if err != nil {
		handleServiceError(c, err, "Failed to load audit log")
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// TicketReport - GET /admin/reports/tickets
// Поиск по архиву закрытых билетов
func (h *Handlers) TicketReport(c *gin.Context) {
	q := search.TicketQuery{
		GateID: c.Query("gateId"),
		ZoneID: c.Query("zoneId"),
		Type:   c.Query("type"),
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}
	if pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 100"})
		return
	}
	q.Page, q.PageSize = page, pageSize

	for param, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be an RFC 3339 timestamp"})
			return
		}
		*dst = &t
	}

	report, err := h.admin.TicketReport(c.Request.Context(), q)
	if err != nil {
		handleServiceError(c, err, "Failed to search tickets")
		return
	}
	c.JSON(http.StatusOK, report)
}
