package maintenance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/models"
)

// TableCount is the number of rows removed from one table
type TableCount struct {
	Table   string `json:"table"`
	Deleted int64  `json:"deleted"`
}

// cleanupOrder lists user-owned tables children first so no delete violates a foreign key.
// Plans are seed data and are kept.
var cleanupOrder = []struct {
	table string
	model interface{}
}{
	{"tickets", &models.Ticket{}},
	{"invoices", &models.Invoice{}},
	{"transactions", &models.Transaction{}},
	{"user_plans", &models.UserPlan{}},
	{"payment_methods", &models.PaymentMethod{}},
	{"users", &models.User{}},
}

// Cleanup deletes every row of the user-owned tables in one transaction.
// Running it on an empty database reports zero for every table.
func Cleanup(ctx context.Context, db *gorm.DB, logger zerolog.Logger) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(cleanupOrder))

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range cleanupOrder {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(step.model)
			if res.Error != nil {
				return fmt.Errorf("failed to delete %s: %w", step.table, res.Error)
			}
			counts = append(counts, TableCount{Table: step.table, Deleted: res.RowsAffected})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range counts {
		logger.Info().Str("table", c.Table).Int64("deleted", c.Deleted).Msg("Table cleared")
	}
	return counts, nil
}
