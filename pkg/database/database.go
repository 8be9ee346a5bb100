package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wahook/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend and runs migrations. The sqlite
// backend goes through the pure-Go modernc driver registered as "sqlite".
func Open(dbc config.Database, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbc.Driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbc.Host, dbc.Port, dbc.User, dbc.Pass, dbc.Name)
		dialector = postgres.New(
			postgres.Config{
				DSN:                  dsn,
				PreferSimpleProtocol: true,
			},
		)
	case DriverSQLite, "":
		if dir := filepath.Dir(dbc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		dialector = sqlite.New(sqlite.Config{
			DriverName: "sqlite",
			DSN:        SQLiteDSN(dbc.Path),
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbc.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: false,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Error().Err(err).Str("driver", dbc.Driver).Msg("failed to initialize database")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying database connection: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("driver", dbc.Driver).Msg("database connection established successfully")

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("database migrations completed successfully")
	return db, nil
}

// SQLiteDSN enables WAL so aggregate reads do not block the ingestion
// writer, and pins the time encoding so received_at compares lexically.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
