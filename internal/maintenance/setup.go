package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/auth"
	"github.com/investly/investly/internal/models"
)

// DefaultPlans are the investment plans every fresh installation starts with.
// Amounts are in cents.
var DefaultPlans = []models.Plan{
	{
		Name:         "Starter",
		Description:  "Entry plan for first-time investors with a short lock-in.",
		MinAmount:    10_000,
		MaxAmount:    99_900,
		ROIPercent:   5,
		DurationDays: 7,
		Active:       true,
	},
	{
		Name:         "Silver",
		Description:  "Balanced returns over one month.",
		MinAmount:    100_000,
		MaxAmount:    499_900,
		ROIPercent:   12,
		DurationDays: 30,
		Active:       true,
	},
	{
		Name:         "Gold",
		Description:  "Higher yield for a quarter-long commitment.",
		MinAmount:    500_000,
		MaxAmount:    1_999_900,
		ROIPercent:   25,
		DurationDays: 90,
		Active:       true,
	},
	{
		Name:         "Platinum",
		Description:  "Premium plan with the best rate over six months.",
		MinAmount:    2_000_000,
		MaxAmount:    10_000_000,
		ROIPercent:   40,
		DurationDays: 180,
		Active:       true,
	},
}

// AdminAccount is the administrator created by Setup
type AdminAccount struct {
	Email    string
	Password string
	Name     string
}

// SetupResult reports what Setup created
type SetupResult struct {
	PlansCreated int  `json:"plans_created"`
	AdminCreated bool `json:"admin_created"`
}

// Setup seeds the default plans and the admin account.
// Plans are only seeded when no plan exists; the admin only when its email is unused.
func Setup(ctx context.Context, db *gorm.DB, admin AdminAccount, logger zerolog.Logger) (*SetupResult, error) {
	if admin.Email == "" || admin.Password == "" {
		return nil, errors.New("admin email and password are required")
	}

	result := &SetupResult{}
	db = db.WithContext(ctx)

	created, err := seedPlans(db)
	if err != nil {
		return nil, err
	}
	result.PlansCreated = created
	if created > 0 {
		logger.Info().Int("count", created).Msg("Investment plans created")
	} else {
		logger.Info().Msg("Plans already exist, skipping plan seeding")
	}

	adminCreated, err := seedAdmin(db, admin)
	if err != nil {
		return nil, err
	}
	result.AdminCreated = adminCreated
	if adminCreated {
		logger.Info().Str("email", admin.Email).Msg("Admin account created")
	} else {
		logger.Info().Str("email", admin.Email).Msg("Admin account already exists, skipping")
	}

	return result, nil
}

func seedPlans(db *gorm.DB) (int, error) {
	var count int64
	if err := db.Model(&models.Plan{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	plans := make([]models.Plan, len(DefaultPlans))
	copy(plans, DefaultPlans)
	if err := db.Create(&plans).Error; err != nil {
		return 0, fmt.Errorf("failed to create plans: %w", err)
	}
	return len(plans), nil
}

func seedAdmin(db *gorm.DB, admin AdminAccount) (bool, error) {
	var existing models.User
	err := db.Where("email = ?", admin.Email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return false, err
	}

	user := &models.User{
		Email:           admin.Email,
		PasswordHash:    hash,
		Name:            admin.Name,
		Role:            models.RoleAdmin,
		IsEmailVerified: true,
		Active:          true,
	}
	if err := db.Create(user).Error; err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}
	return true, nil
}
