package repository

import (
	"github.com/yukikurage/retail-tasks/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task together with its shares
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// ListActive returns every task that is not soft-deleted
func (r *GormTaskRepository) ListActive() ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Preload("Shares").Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update writes the mutable task columns guarded by the expected version
func (r *GormTaskRepository) Update(task *models.Task, expectedVersion uint64) error {
	res := r.db.Model(&models.Task{}).
		Where("id = ? AND version = ?", task.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"type":        task.Type,
			"status":      task.Status,
			"priority":    task.Priority,
			"date":        task.Date,
			"deadline":    task.Deadline,
			"user_name":   task.UserName,
			"team_id":     task.TeamID,
			"assigned_to": task.AssignedTo,
			"visibility":  task.Visibility,
			"is_shared":   task.IsShared,
			"version":     expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	task.Version = expectedVersion + 1
	return nil
}

// Delete soft deletes a task and drops its shares
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskShare{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Task{}, id).Error
	})
}

// AddShares shares a task with users; existing shares are kept
func (r *GormTaskRepository) AddShares(taskID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}

	shares := make([]models.TaskShare, len(userIDs))
	for i, userID := range userIDs {
		shares[i] = models.TaskShare{
			TaskID: taskID,
			UserID: userID,
		}
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&shares).Error; err != nil {
			return err
		}
		return syncShared(tx, taskID)
	})
}

// RemoveShares revokes shares
func (r *GormTaskRepository) RemoveShares(taskID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND user_id IN ?", taskID, userIDs).
			Delete(&models.TaskShare{}).Error; err != nil {
			return err
		}
		return syncShared(tx, taskID)
	})
}

// syncShared recomputes is_shared after the share set changed and bumps the
// version so concurrent edits notice.
func syncShared(tx *gorm.DB, taskID uint64) error {
	var task models.Task
	if err := tx.Preload("Shares").First(&task, taskID).Error; err != nil {
		return err
	}
	task.SyncShared()

	return tx.Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"is_shared": task.IsShared,
			"version":   gorm.Expr("version + 1"),
		}).Error
}
