package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/auth"
	"github.com/investly/investly/internal/metrics"
	"github.com/investly/investly/internal/models"
	"github.com/investly/investly/internal/tasks"
)

// verificationTTL bounds how long an emailed verification link stays usable
const verificationTTL = 24 * time.Hour

// SignupRequest represents a registration request
type SignupRequest struct {
	Name     string `json:"name" binding:"required" validate:"notblank,max=100,personname"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" validate:"min=8,max=72"`
}

// SigninRequest represents a login request
type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest carries the token from the verification link
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// AuthResponse is returned by signup and signin
type AuthResponse struct {
	Token string      `json:"token"`
	User  *UserDetail `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	Name            string      `json:"name"`
	Role            models.Role `json:"role"`
	IsEmailVerified bool        `json:"is_email_verified"`
	Active          bool        `json:"active"`
	Balance         int64       `json:"balance"`
	CreatedAt       time.Time   `json:"created_at"`
}

func newUserDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Role:            user.Role,
		IsEmailVerified: user.IsEmailVerified,
		Active:          user.Active,
		Balance:         user.Balance,
		CreatedAt:       user.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// enqueueVerificationEmail schedules the verification mail; failures are logged, not returned
func (s *Server) enqueueVerificationEmail(userID string) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewSendVerificationEmailTask(userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to build verification task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue verification email")
	}
}

// @Summary Sign up
// @Description Create a USER account and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/signup [post]
func (s *Server) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check email")
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if count > 0 {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "conflict").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	verificationToken, err := newVerificationToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate verification token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	now := time.Now().UTC()

	user := &models.User{
		Email:              email,
		PasswordHash:       passwordHash,
		Name:               strings.TrimSpace(req.Name),
		Role:               models.RoleUser,
		Active:             true,
		VerificationToken:  verificationToken,
		VerificationSentAt: &now,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := s.issuer.GenerateToken(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.enqueueVerificationEmail(user.ID)
	metrics.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed up")

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: newUserDetail(user)})
}

// @Summary Sign in
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SigninRequest true "Signin request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /api/auth/signin [post]
func (s *Server) signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := normalizeEmail(req.Email)

	allowed, err := s.signinLimiter.Allow(c.Request.Context(), c.ClientIP()+":"+email)
	if err != nil {
		// Fail open: a broken limiter must not lock everybody out
		s.logger.Warn().Err(err).Msg("Signin rate limiter unavailable")
	} else if !allowed {
		metrics.AuthAttemptsTotal.WithLabelValues("signin", "rate_limited").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many signin attempts, try again later"})
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttemptsTotal.WithLabelValues("signin", "invalid").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		metrics.AuthAttemptsTotal.WithLabelValues("signin", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signin", "invalid").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !user.Active {
		metrics.AuthAttemptsTotal.WithLabelValues("signin", "inactive").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
		return
	}

	token, err := s.issuer.GenerateToken(&user)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signin", "success").Inc()
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User signed in")

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: newUserDetail(&user)})
}

// @Summary Verify email
// @Description Confirm an email address with the token from the verification link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyEmailRequest true "Verification token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/verify-email [post]
func (s *Server) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification token is required"})
		return
	}

	var user models.User
	if err := s.db.Where("verification_token = ?", req.Token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or already used verification token"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to look up verification token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if user.VerificationSentAt == nil || time.Since(*user.VerificationSentAt) > verificationTTL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification token has expired"})
		return
	}

	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"is_email_verified":  true,
		"verification_token": "",
	}).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to mark email verified")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Msg("Email verified")
	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

// @Summary Resend verification email
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/resend-verification [post]
func (s *Server) resendVerification(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if user.IsEmailVerified {
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already verified"})
		return
	}

	token, err := newVerificationToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate verification token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	now := time.Now().UTC()
	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"verification_token":   token,
		"verification_sent_at": now,
	}).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store verification token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	s.enqueueVerificationEmail(user.ID)
	c.JSON(http.StatusAccepted, gin.H{"message": "Verification email sent"})
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, newUserDetail(&user))
}
