package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkgate/internal/models"
)

// Checkin - POST /tickets/checkin
func (h *Handlers) Checkin(c *gin.Context) {
	var req models.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.tickets.Checkin(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to check in")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Checkout - POST /tickets/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.tickets.Checkout(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err, "Failed to check out")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetTicket - GET /tickets/:id
func (h *Handlers) GetTicket(c *gin.Context) {
	ticket, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, "Failed to get ticket")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ListTickets - GET /admin/tickets?status=open|closed
func (h *Handlers) ListTickets(c *gin.Context) {
	var filter models.TicketFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindError(c, err)
		return
	}

	tickets, err := h.tickets.List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, "Failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, tickets)
}
