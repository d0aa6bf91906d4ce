// Package store owns all persistence mechanics: the Postgres connection, the
// Redis connection, and the query/transaction surface consumed by services,
// the generation worker, and the billing reconciler.
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gemchat/internal/domain"
)

// ConnectPostgres opens the database connection and migrates the schema.
func ConnectPostgres(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(&domain.User{}, &domain.Subscription{}, &domain.ChatRoom{}, &domain.Message{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
