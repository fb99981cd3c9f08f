// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/models"
)

// NewDB opens a migrated in-memory SQLite database that lives for the test.
// The pool is pinned to one connection so every query sees the same memory
// database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.MigrateDatabase(db))
	database.SetDB(db)
	return db
}

func Ptr[T any](v T) *T {
	return &v
}

// CreateTeam inserts a team.
func CreateTeam(t *testing.T, db *gorm.DB, name string, leaderID *uint64) *models.Team {
	t.Helper()
	team := &models.Team{Name: name, LeaderID: leaderID}
	require.NoError(t, db.Create(team).Error)
	return team
}

// CreateUser inserts an active user with a changed password.
func CreateUser(t *testing.T, db *gorm.DB, name string, role models.Role, teamID *uint64) *models.User {
	t.Helper()
	user := &models.User{
		Name:            name,
		Email:           name + "@retail.test",
		PasswordHash:    "hashed",
		Role:            role,
		TeamID:          teamID,
		Status:          models.UserStatusActive,
		PasswordChanged: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTask inserts a task snapshotting the creator's current name and team.
func CreateTask(t *testing.T, db *gorm.DB, title string, creator *models.User, visibility models.Visibility) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:      title,
		Type:       models.TaskTypeOther,
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityMedium,
		UserID:     creator.ID,
		UserName:   creator.Name,
		TeamID:     creator.TeamID,
		Visibility: visibility,
	}
	task.SyncShared()
	require.NoError(t, db.Create(task).Error)
	return task
}
