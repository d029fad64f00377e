package workers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/mailer"
	"github.com/investly/investly/internal/models"
	"github.com/investly/investly/internal/tasks"
)

// VerificationLink builds the frontend URL a user follows to confirm their email
func VerificationLink(frontendURL, token string) string {
	return frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// HandleSendVerificationEmail mails the current verification link to a user.
// Users that are gone, already verified, or have no pending token are skipped.
func HandleSendVerificationEmail(ctx context.Context, t *asynq.Task, db *gorm.DB, m mailer.Mailer, frontendURL string, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w: %w", err, asynq.SkipRetry)
	}

	var user models.User
	if err := models.FindByID(db.WithContext(ctx), payload.UserID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Str("user_id", payload.UserID).Msg("User no longer exists - skipping verification email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if user.IsEmailVerified || user.VerificationToken == "" {
		logger.Debug().Str("user_id", user.ID).Msg("Nothing to verify - skipping verification email")
		return nil
	}

	link := VerificationLink(frontendURL, user.VerificationToken)
	msg := mailer.Message{
		To:      user.Email,
		Subject: "Verify your Investly email address",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. It expires in 24 hours.\n\n%s\n",
			user.Name, link),
	}
	if err := m.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Verification email sent")
	return nil
}
