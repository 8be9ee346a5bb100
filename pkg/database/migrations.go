package database

import (
	"github.com/wahook/pkg/entities"
	"gorm.io/gorm"
)

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.WebhookEvent{},
		&entities.Chat{},
		&entities.Sender{},
		&entities.MessageContent{},
	)
}
