// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/database"
	"github.com/wahook/pkg/logger"
	"gorm.io/gorm"
)

// SQLite opens a migrated sqlite store in a per-test temp dir and closes it
// on cleanup.
func SQLite(t testing.TB) (*gorm.DB, config.Database) {
	t.Helper()
	dbc := config.Database{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "events.db"),
	}
	db, err := database.Open(dbc, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db, dbc
}
