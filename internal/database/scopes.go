package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/models"
)

// ActiveUsers restricts a user query to users that are not soft deleted
func ActiveUsers(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", models.UserStatusActive)
}

// CreatedBy restricts a task query to tasks created by userIDs. No IDs means
// every task.
func CreatedBy(userIDs ...uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(userIDs) == 0 {
			return db
		}
		return db.Where("user_id IN ?", userIDs)
	}
}
