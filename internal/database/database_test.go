package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "investly.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)

	ctx := context.Background()

	// Both are held at once so the pool has to hand out two distinct connections
	conn1, err := sqlDB.Conn(ctx)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, err := sqlDB.Conn(ctx)
	require.NoError(t, err)
	defer conn2.Close()

	for name, conn := range map[string]*sql.Conn{"conn1": conn1, "conn2": conn2} {
		var foreignKeys, busyTimeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, 1, foreignKeys, "%s foreign_keys", name)
		assert.Equal(t, 5000, busyTimeout, "%s busy_timeout", name)

		var journalMode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode, "%s journal_mode", name)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("investly.sqlite", 5000, 10000)
	assert.Equal(t, "investly.sqlite?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-10000)&_pragma=temp_store(2)", dsn)

	dsn = sqliteDSN("file:data.db?mode=rwc", 100, 10)
	assert.Contains(t, dsn, "file:data.db?mode=rwc&_pragma=busy_timeout(100)")
}
