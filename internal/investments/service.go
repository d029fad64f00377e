package investments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/metrics"
	"github.com/investly/investly/internal/models"
)

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPlanInactive        = errors.New("plan is not accepting investments")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAmountOutOfRange    = errors.New("amount is outside the plan limits")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
)

// Service handles money movements: deposits, investments and maturity payouts
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new investments service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "investments_service").Logger(),
		now:    time.Now,
	}
}

// InvestParams are the inputs of Invest
type InvestParams struct {
	UserID string
	PlanID string
	Amount int64
}

// Invest moves amount from the user's balance into a new position in the plan.
// The position, its INVESTMENT transaction and a paid invoice are created atomically.
func (s *Service) Invest(ctx context.Context, params InvestParams) (*models.UserPlan, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var userPlan models.UserPlan
	var plan models.Plan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.FindByID(tx, params.PlanID, &plan); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return fmt.Errorf("failed to load plan: %w", err)
		}
		if !plan.Active {
			return ErrPlanInactive
		}
		if params.Amount < plan.MinAmount || params.Amount > plan.MaxAmount {
			return ErrAmountOutOfRange
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND balance >= ?", params.UserID, params.Amount).
			Update("balance", gorm.Expr("balance - ?", params.Amount))
		if res.Error != nil {
			return fmt.Errorf("failed to debit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", params.UserID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to load user: %w", err)
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientBalance
		}

		now := s.now().UTC()
		userPlan = models.UserPlan{
			UserID:         params.UserID,
			PlanID:         plan.ID,
			Amount:         params.Amount,
			ExpectedReturn: plan.ExpectedReturn(params.Amount),
			Status:         models.UserPlanActive,
			StartsAt:       now,
			EndsAt:         now.AddDate(0, 0, plan.DurationDays),
		}
		if err := tx.Create(&userPlan).Error; err != nil {
			return fmt.Errorf("failed to create investment: %w", err)
		}

		txn := models.Transaction{
			UserID:     params.UserID,
			UserPlanID: &userPlan.ID,
			Type:       models.TransactionInvestment,
			Amount:     params.Amount,
			Status:     models.TransactionCompleted,
			Reference:  plan.Name,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		invoice := models.Invoice{
			UserID:        params.UserID,
			TransactionID: txn.ID,
			Number:        models.GenerateInvoiceNumber(txn.ID, now),
			Amount:        params.Amount,
			Status:        models.InvoicePaid,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	userPlan.Plan = &plan
	metrics.InvestmentsCreatedTotal.WithLabelValues(plan.Name).Inc()

	s.logger.Info().
		Str("user_id", params.UserID).
		Str("plan_id", plan.ID).
		Str("user_plan_id", userPlan.ID).
		Int64("amount", params.Amount).
		Msg("Investment created")

	return &userPlan, nil
}

// Deposit credits amount to the user's balance
func (s *Service) Deposit(ctx context.Context, userID string, amount int64, reference string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var txn models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to credit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		txn = models.Transaction{
			UserID:    userID,
			Type:      models.TransactionDeposit,
			Amount:    amount,
			Status:    models.TransactionCompleted,
			Reference: reference,
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Int64("amount", amount).Msg("Deposit recorded")
	return &txn, nil
}

// SettleMatured pays out every ACTIVE investment whose end date has passed.
// Each position is settled in its own transaction; it returns how many were settled.
func (s *Service) SettleMatured(ctx context.Context) (int, error) {
	now := s.now().UTC()

	var due []models.UserPlan
	if err := s.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.UserPlanActive, now).
		Order("ends_at ASC").
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to query matured investments: %w", err)
	}

	settled := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		ok, err := s.settleOne(ctx, &due[i], now)
		if err != nil {
			s.logger.Error().Err(err).Str("user_plan_id", due[i].ID).Msg("Failed to settle investment")
			continue
		}
		if ok {
			settled++
		}
	}

	if settled > 0 {
		metrics.InvestmentsSettledTotal.Add(float64(settled))
		s.logger.Info().Int("settled", settled).Msg("Matured investments settled")
	}
	return settled, nil
}

func (s *Service) settleOne(ctx context.Context, up *models.UserPlan, now time.Time) (bool, error) {
	settled := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update so two settlement runs cannot both pay out
		res := tx.Model(&models.UserPlan{}).
			Where("id = ? AND status = ?", up.ID, models.UserPlanActive).
			Updates(map[string]interface{}{
				"status":     models.UserPlanCompleted,
				"settled_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		payout := up.Amount + up.ExpectedReturn
		if err := tx.Model(&models.User{}).
			Where("id = ?", up.UserID).
			Update("balance", gorm.Expr("balance + ?", payout)).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.Transaction{
			UserID:     up.UserID,
			UserPlanID: &up.ID,
			Type:       models.TransactionPayout,
			Amount:     payout,
			Status:     models.TransactionCompleted,
			Reference:  "maturity payout",
		}).Error; err != nil {
			return err
		}

		settled = true
		return nil
	})
	return settled, err
}

// Stats is the aggregate shown on the admin dashboard
type Stats struct {
	Users             int64 `json:"users"`
	ActiveUsers       int64 `json:"active_users"`
	ActiveInvestments int64 `json:"active_investments"`
	TotalInvested     int64 `json:"total_invested"`
	TotalPaidOut      int64 `json:"total_paid_out"`
	OpenTickets       int64 `json:"open_tickets"`
}

// Stats computes platform-wide counters
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats

	if err := db.Model(&models.User{}).Count(&st.Users).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.User{}).Where("active = ?", true).Count(&st.ActiveUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if err := db.Model(&models.UserPlan{}).Where("status = ?", models.UserPlanActive).Count(&st.ActiveInvestments).Error; err != nil {
		return nil, fmt.Errorf("failed to count investments: %w", err)
	}
	if err := db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionInvestment, models.TransactionCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&st.TotalInvested).Error; err != nil {
		return nil, fmt.Errorf("failed to sum investments: %w", err)
	}
	if err := db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionPayout, models.TransactionCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&st.TotalPaidOut).Error; err != nil {
		return nil, fmt.Errorf("failed to sum payouts: %w", err)
	}
	if err := db.Model(&models.Ticket{}).Where("status = ?", models.TicketOpen).Count(&st.OpenTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	return &st, nil
}
