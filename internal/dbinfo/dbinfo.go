// Package dbinfo reports what the database behind a *gorm.DB looks like:
// backend, server version, on-disk size and row counts per table.
package dbinfo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/investly/investly/internal/models"
)

// Info contains metadata about the application database
type Info struct {
	Dialect      string       `json:"dialect"`
	Version      string       `json:"version"`
	MajorVersion int          `json:"major_version"`
	SizeBytes    int64        `json:"size_bytes"`
	Tables       []TableStats `json:"tables"`
}

// TableStats is the row count of one table
type TableStats struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// inspected are counted in migration order
var inspected = []interface{}{
	&models.User{}, &models.Plan{}, &models.UserPlan{}, &models.Transaction{},
	&models.Invoice{}, &models.Ticket{}, &models.PaymentMethod{},
}

// Inspect gathers Info. Only postgres and sqlite are supported.
func Inspect(ctx context.Context, db *gorm.DB) (*Info, error) {
	db = db.WithContext(ctx)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	info := &Info{Dialect: db.Dialector.Name()}

	if info.Version, err = version(db, info.Dialect); err != nil {
		return nil, err
	}
	info.MajorVersion = MajorVersion(info.Version)

	if info.SizeBytes, err = size(db, info.Dialect); err != nil {
		return nil, err
	}

	for _, model := range inspected {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("failed to parse model: %w", err)
		}

		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Schema.Table, err)
		}
		info.Tables = append(info.Tables, TableStats{Table: stmt.Schema.Table, Rows: count})
	}

	return info, nil
}

func version(db *gorm.DB, dialect string) (string, error) {
	var query string
	switch dialect {
	case "postgres":
		query = "SHOW server_version"
	case "sqlite":
		query = "SELECT sqlite_version()"
	default:
		return "", fmt.Errorf("unsupported database dialect %q", dialect)
	}

	var v string
	if err := db.Raw(query).Row().Scan(&v); err != nil {
		return "", fmt.Errorf("failed to query %s version: %w", dialect, err)
	}
	return v, nil
}

func size(db *gorm.DB, dialect string) (int64, error) {
	if dialect == "postgres" {
		var sizeBytes int64
		if err := db.Raw("SELECT pg_database_size(current_database())").Row().Scan(&sizeBytes); err != nil {
			return 0, fmt.Errorf("failed to query database size: %w", err)
		}
		return sizeBytes, nil
	}

	var pageCount, pageSize int64
	if err := db.Raw("PRAGMA page_count").Row().Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to query page count: %w", err)
	}
	if err := db.Raw("PRAGMA page_size").Row().Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to query page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// MajorVersion extracts the leading number of a version string,
// e.g. "16.3" -> 16, "14.10 (Ubuntu 14.10-1.pgdg22.04+1)" -> 14, "3.41.2" -> 3.
// It returns 0 when the string does not start with a number.
func MajorVersion(v string) int {
	var major int
	if _, err := fmt.Sscanf(v, "%d", &major); err != nil {
		return 0
	}
	return major
}
