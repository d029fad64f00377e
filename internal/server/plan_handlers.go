package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/models"
)

// PlanRequest is the body for creating or replacing a plan
type PlanRequest struct {
	Name         string  `json:"name" binding:"required" validate:"notblank,max=60"`
	Description  string  `json:"description" validate:"max=2000"`
	MinAmount    int64   `json:"min_amount" validate:"gt=0"`
	MaxAmount    int64   `json:"max_amount" validate:"gtefield=MinAmount"`
	ROIPercent   float64 `json:"roi_percent" validate:"gt=0,lte=1000"`
	DurationDays int     `json:"duration_days" validate:"gte=1,lte=3650"`
	ImageURL     string  `json:"image_url" validate:"omitempty,url|startswith=/uploads/"`
	Active       *bool   `json:"active"`
}

func (r *PlanRequest) apply(plan *models.Plan) {
	plan.Name = strings.TrimSpace(r.Name)
	plan.Description = r.Description
	plan.MinAmount = r.MinAmount
	plan.MaxAmount = r.MaxAmount
	plan.ROIPercent = r.ROIPercent
	plan.DurationDays = r.DurationDays
	plan.ImageURL = r.ImageURL
	if r.Active != nil {
		plan.Active = *r.Active
	}
}

func (s *Server) bindPlan(c *gin.Context) (*PlanRequest, bool) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return nil, false
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return nil, false
	}
	return &req, true
}

func (s *Server) planNameTaken(name, exceptID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Plan{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(strings.TrimSpace(name)), exceptID).
		Count(&count).Error
	return count > 0, err
}

// @Summary List plans
// @Description Active investment plans, cheapest first
// @Tags plans
// @Produce json
// @Success 200 {array} models.Plan
// @Router /api/plans [get]
func (s *Server) listPlans(c *gin.Context) {
	var plans []models.Plan
	if err := s.db.Where("active = ?", true).Order("min_amount ASC").Find(&plans).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list plans")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, plans)
}

// @Summary Get plan
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} models.Plan
// @Failure 404 {object} map[string]interface{}
// @Router /api/plans/{id} [get]
func (s *Server) getPlan(c *gin.Context) {
	var plan models.Plan
	if err := models.FindByID(s.db, c.Param("id"), &plan); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// @Summary Create plan
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PlanRequest true "Plan"
// @Success 201 {object} models.Plan
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/admin/plans [post]
func (s *Server) createPlan(c *gin.Context) {
	req, ok := s.bindPlan(c)
	if !ok {
		return
	}

	taken, err := s.planNameTaken(req.Name, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to check plan name")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "A plan with this name already exists"})
		return
	}

	plan := models.Plan{Active: true}
	req.apply(&plan)

	// Active has a database default of true, so an inactive plan needs an explicit update
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		if !plan.Active {
			return tx.Model(&plan).Update("active", false).Error
		}
		return nil
	}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan"})
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Str("created_by", sessionData.UserID).Msg("Plan created")

	c.JSON(http.StatusCreated, plan)
}

// @Summary Update plan
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param request body PlanRequest true "Plan"
// @Success 200 {object} models.Plan
// @Router /api/admin/plans/{id} [put]
func (s *Server) updatePlan(c *gin.Context) {
	var plan models.Plan
	if err := models.FindByID(s.db, c.Param("id"), &plan); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	req, ok := s.bindPlan(c)
	if !ok {
		return
	}

	taken, err := s.planNameTaken(req.Name, plan.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to check plan name")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "A plan with this name already exists"})
		return
	}

	req.apply(&plan)
	// Select("*") so false/zero values are written too
	if err := s.db.Model(&plan).Select("*").Omit("id", "created_at").Updates(&plan).Error; err != nil {
		s.logger.Error().Err(err).Str("plan_id", plan.ID).Msg("Failed to update plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

// @Summary Retire plan
// @Description Plans with investments cannot be removed, so deleting only deactivates them
// @Tags admin
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 204
// @Router /api/admin/plans/{id} [delete]
func (s *Server) deletePlan(c *gin.Context) {
	res := s.db.Model(&models.Plan{}).Where("id = ?", c.Param("id")).Update("active", false)
	if res.Error != nil {
		s.logger.Error().Err(res.Error).Msg("Failed to deactivate plan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete plan"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
