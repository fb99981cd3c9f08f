package repository

import (
	"errors"

	"github.com/yukikurage/retail-tasks/internal/models"
)

// ErrVersionConflict is returned when an update's expected version no longer
// matches the stored row.
var ErrVersionConflict = errors.New("repository: version conflict")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task together with its shares
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// ListActive returns every task that is not soft-deleted, with shares
	ListActive() ([]models.Task, error)

	// Update writes the task if its stored version equals expectedVersion
	Update(task *models.Task, expectedVersion uint64) error

	// Delete soft deletes a task
	Delete(id uint64) error

	// AddShares shares a task with users
	AddShares(taskID uint64, userIDs []uint64) error

	// RemoveShares revokes shares
	RemoveShares(taskID uint64, userIDs []uint64) error
}

// TeamRepository defines the interface for team data access
type TeamRepository interface {
	// FindByID finds a team by ID
	FindByID(id uint64) (*models.Team, error)

	// List returns every team
	List() ([]models.Team, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByEmail finds the oldest active user with the email, ignoring case
	FindByEmail(email string) (*models.User, error)

	// List returns every user, deleted ones included
	List() ([]models.User, error)

	// SetPassword stores a new hash and closes the password gate flags
	SetPassword(userID uint64, passwordHash string) error

	// UpdateTeam moves a user if its stored version equals expectedVersion
	UpdateTeam(userID uint64, teamID *uint64, expectedVersion uint64) error
}
