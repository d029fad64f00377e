package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/investly/investly/internal/investments"
	"github.com/investly/investly/internal/models"
)

// CreateInvestmentRequest puts amount (cents) into a plan
type CreateInvestmentRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required" validate:"gt=0"`
}

// DepositRequest credits the caller's balance
type DepositRequest struct {
	Amount    int64  `json:"amount" binding:"required" validate:"gt=0,lte=100000000"`
	Reference string `json:"reference" validate:"max=120"`
}

// investmentErrorStatus maps service errors to HTTP statuses
func investmentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, investments.ErrPlanNotFound):
		return http.StatusNotFound, "Plan not found"
	case errors.Is(err, investments.ErrPlanInactive),
		errors.Is(err, investments.ErrAmountOutOfRange),
		errors.Is(err, investments.ErrInvalidAmount):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, investments.ErrInsufficientBalance):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, investments.ErrUserNotFound):
		return http.StatusUnauthorized, "User not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// @Summary Invest in a plan
// @Tags investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateInvestmentRequest true "Investment"
// @Success 201 {object} models.UserPlan
// @Failure 400 {object} map[string]interface{}
// @Failure 402 {object} map[string]interface{}
// @Router /api/investments [post]
func (s *Server) createInvestment(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreateInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	userPlan, err := s.investmentsService.Invest(c.Request.Context(), investments.InvestParams{
		UserID: sessionData.UserID,
		PlanID: req.PlanID,
		Amount: req.Amount,
	})
	if err != nil {
		status, message := investmentErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to create investment")
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusCreated, userPlan)
}

// @Summary List my investments
// @Tags investments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserPlan
// @Router /api/investments [get]
func (s *Server) listInvestments(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var userPlans []models.UserPlan
	if err := s.db.Preload("Plan").
		Where("user_id = ?", sessionData.UserID).
		Order("created_at DESC").
		Find(&userPlans).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list investments")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, userPlans)
}

// @Summary List my transactions
// @Tags investments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transaction
// @Router /api/transactions [get]
func (s *Server) listTransactions(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var txns []models.Transaction
	if err := s.db.Where("user_id = ?", sessionData.UserID).
		Order("created_at DESC").
		Limit(200).
		Find(&txns).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list transactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, txns)
}

// @Summary Deposit funds
// @Tags investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DepositRequest true "Deposit"
// @Success 201 {object} models.Transaction
// @Router /api/deposits [post]
func (s *Server) createDeposit(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	txn, err := s.investmentsService.Deposit(c.Request.Context(), sessionData.UserID, req.Amount, req.Reference)
	if err != nil {
		status, message := investmentErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("Failed to record deposit")
		}
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// @Summary Platform statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} investments.Stats
// @Router /api/admin/stats [get]
func (s *Server) getStats(c *gin.Context) {
	stats, err := s.investmentsService.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
