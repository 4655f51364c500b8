package database

import (
	"database/sql"
	"fmt"
	"time"

	"leadgen/internal/pkg/config"
	"leadgen/internal/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps gorm.DB
type Database struct {
	*gorm.DB
}

// NewDatabase opens the postgres connection described by cfg.Database
func NewDatabase(cfg *config.Config, log *logger.Logger) (*Database, error) {
	level := gormlogger.Warn
	if cfg.Logger.Level == "debug" {
		level = gormlogger.Info
	}

	gormLog := gormlogger.New(
		&gormLogWriter{logger: log.Named("gorm")},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	return &Database{DB: db}, nil
}

// gormLogWriter implements gorm logger.Writer interface
type gormLogWriter struct {
	logger *logger.Logger
}

// Printf implements gorm logger.Writer interface
func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Info(fmt.Sprintf(format, args...))
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB returns the underlying *sql.DB for migrations and health checks
func (d *Database) SQLDB() (*sql.DB, error) {
	return d.DB.DB()
}
