// Package database opens the PostgreSQL and Redis connections used by storage
// and keeps the schema in sync with internal/models.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"livesignal/backend/internal/models"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Models lists every entity owned by the schema, in dependency order.
func Models() []any {
	return []any{
		&models.Role{},
		&models.User{},
		&models.Clinic{},
		&models.UserClinic{},
		&models.Category{},
		&models.Service{},
		&models.ServiceMedia{},
		&models.LivestreamRoom{},
		&models.Promotion{},
		&models.Order{},
		&models.LiveStreamDetail{},
		&models.LiveStreamLog{},
	}
}

// EnsureDatabase creates dbName when it does not exist yet. maintenanceDSN must point
// at a database that always exists (postgres).
func EnsureDatabase(maintenanceDSN, dbName string, log *zap.Logger) error {
	if dbName == "" {
		return errors.New("database name is empty")
	}

	db, err := sql.Open("postgres", maintenanceDSN)
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping admin connection: %w", err)
	}

	var exists bool
	err = db.QueryRow("SELECT true FROM pg_database WHERE datname = $1", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	log.Info("database created", zap.String("db", dbName))
	return nil
}

// Open connects GORM to PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the tables for Models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// OpenRedis connects and pings Redis. An empty addr disables Redis and returns nil.
func OpenRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}
