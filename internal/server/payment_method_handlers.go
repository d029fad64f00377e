package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/models"
)

// CreatePaymentMethodRequest saves a payout destination
type CreatePaymentMethodRequest struct {
	Kind      models.PaymentMethodKind `json:"kind" binding:"required" validate:"oneof=BANK CARD CRYPTO"`
	Label     string                   `json:"label" binding:"required" validate:"notblank,max=60"`
	Details   string                   `json:"details" validate:"max=500"`
	IsDefault bool                     `json:"is_default"`
}

// @Summary List payment methods
// @Tags payment-methods
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PaymentMethod
// @Router /api/payment-methods [get]
func (s *Server) listPaymentMethods(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var methods []models.PaymentMethod
	if err := s.db.Where("user_id = ?", sessionData.UserID).
		Order("is_default DESC, created_at ASC").
		Find(&methods).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list payment methods")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, methods)
}

// @Summary Add payment method
// @Description The first method, or one flagged is_default, becomes the only default
// @Tags payment-methods
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePaymentMethodRequest true "Payment method"
// @Success 201 {object} models.PaymentMethod
// @Router /api/payment-methods [post]
func (s *Server) createPaymentMethod(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var req CreatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.Kind = models.PaymentMethodKind(strings.ToUpper(string(req.Kind)))
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	method := models.PaymentMethod{
		UserID:    sessionData.UserID,
		Kind:      req.Kind,
		Label:     strings.TrimSpace(req.Label),
		Details:   req.Details,
		IsDefault: req.IsDefault,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PaymentMethod{}).Where("user_id = ?", sessionData.UserID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			method.IsDefault = true
		}
		if method.IsDefault {
			if err := tx.Model(&models.PaymentMethod{}).
				Where("user_id = ?", sessionData.UserID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create payment method")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment method"})
		return
	}
	c.JSON(http.StatusCreated, method)
}

// @Summary Remove payment method
// @Tags payment-methods
// @Security BearerAuth
// @Param id path string true "Payment method ID"
// @Success 204
// @Router /api/payment-methods/{id} [delete]
func (s *Server) deletePaymentMethod(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	// Scoped to the caller so users cannot delete each other's methods
	res := s.db.Where("id = ? AND user_id = ?", c.Param("id"), sessionData.UserID).Delete(&models.PaymentMethod{})
	if res.Error != nil {
		s.logger.Error().Err(res.Error).Msg("Failed to delete payment method")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete payment method"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment method not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
