package database

import (
	"fmt"

	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// Composite indexes for the visibility queries. Single-column indexes come
// from the model tags.
var indexes = []index{
	{"tasks", "idx_tasks_user_created", "user_id, created_at"},
	{"tasks", "idx_tasks_team_created", "team_id, created_at"},
	{"task_shares", "idx_task_shares_user_id", "user_id"},
	{"users", "idx_users_team_status", "team_id, status"},
}

// AddIndexes creates any missing index from the list above. It is safe to
// run repeatedly.
func AddIndexes(db *gorm.DB) error {
	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// MigrateDatabase runs AutoMigrate for every model, then adds indexes.
func MigrateDatabase(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
