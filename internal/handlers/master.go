package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListGates - GET /master/gates
func (h *Handlers) ListGates(c *gin.Context) {
	listHandler("Failed to list gates", h.master.ListGates)(c)
}

// ListZones - GET /master/zones?gateId=
// Без gateId возвращает все зоны
func (h *Handlers) ListZones(c *gin.Context) {
	zones, err := h.master.ListZones(c.Request.Context(), c.Query("gateId"))
	if err != nil {
		handleServiceError(c, err, "Failed to list zones")
		return
	}
	c.JSON(http.StatusOK, zones)
}

// ListCategories - GET /master/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	listHandler("Failed to list categories", h.master.ListCategories)(c)
}

// GetSubscription - GET /subscriptions/:id
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.master.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to get subscription")
		return
	}
	c.JSON(http.StatusOK, sub)
}
