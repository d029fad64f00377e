package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/models"
)

// CreateTicketRequest opens a support ticket
type CreateTicketRequest struct {
	Subject string `json:"subject" binding:"required" validate:"notblank,max=140"`
	Message string `json:"message" binding:"required" validate:"notblank,max=5000"`
}

// ReplyTicketRequest answers or closes a ticket
type ReplyTicketRequest struct {
	Reply string `json:"reply" binding:"required" validate:"notblank,max=5000"`
	Close bool   `json:"close"`
}

// @Summary List my tickets
// @Tags tickets
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Ticket
// @Router /api/tickets [get]
func (s *Server) listTickets(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var tickets []models.Ticket
	if err := s.db.Where("user_id = ?", sessionData.UserID).Order("created_at DESC").Find(&tickets).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list tickets")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Open ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTicketRequest true "Ticket"
// @Success 201 {object} models.Ticket
// @Router /api/tickets [post]
func (s *Server) createTicket(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	ticket := models.Ticket{
		UserID:  sessionData.UserID,
		Subject: strings.TrimSpace(req.Subject),
		Message: req.Message,
		Status:  models.TicketOpen,
	}
	if err := s.db.Create(&ticket).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ticket"})
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// @Summary List all tickets
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "OPEN, ANSWERED or CLOSED"
// @Success 200 {array} models.Ticket
// @Router /api/admin/tickets [get]
func (s *Server) listAllTickets(c *gin.Context) {
	query := s.db.Order("created_at ASC")
	if status := strings.ToUpper(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var tickets []models.Ticket
	if err := query.Find(&tickets).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list tickets")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Reply to ticket
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param request body ReplyTicketRequest true "Reply"
// @Success 200 {object} models.Ticket
// @Router /api/admin/tickets/{id}/reply [post]
func (s *Server) replyTicket(c *gin.Context) {
	var req ReplyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	var ticket models.Ticket
	if err := models.FindByID(s.db, c.Param("id"), &ticket); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ticket.Reply = req.Reply
	ticket.Status = models.TicketAnswered
	if req.Close {
		ticket.Status = models.TicketClosed
	}
	if err := s.db.Model(&ticket).Updates(map[string]interface{}{
		"reply":  ticket.Reply,
		"status": ticket.Status,
	}).Error; err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("Failed to reply to ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ticket"})
		return
	}
	c.JSON(http.StatusOK, ticket)
}
