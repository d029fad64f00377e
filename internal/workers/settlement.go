package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/investly/investly/internal/investments"
)

// HandleSettleInvestments pays out every investment that has reached its end date
func HandleSettleInvestments(ctx context.Context, t *asynq.Task, svc *investments.Service, logger zerolog.Logger) error {
	settled, err := svc.SettleMatured(ctx)
	if err != nil {
		return fmt.Errorf("failed to settle investments: %w", err)
	}

	logger.Debug().Int("settled", settled).Msg("Settlement run finished")
	return nil
}
