// Package maintenance holds data repair jobs. Every job is idempotent: running
// it again on its own output changes nothing.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/models"
)

var (
	ErrUserNotFound = errors.New("maintenance: user not found")
	ErrTeamNotFound = errors.New("maintenance: team not found")
)

const batchSize = 200

type Maintainer struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Maintainer {
	return &Maintainer{db: db, logger: logger}
}

// ReconcileReport counts what ReconcileTaskAttribution looked at and fixed.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// ReconcileTaskAttribution rewrites each task's team and creator name from its
// creator's current record. Limit it to some creators by passing their IDs.
func (m *Maintainer) ReconcileTaskAttribution(ctx context.Context, creatorIDs ...uint64) (ReconcileReport, error) {
	var report ReconcileReport

	var users []models.User
	if err := m.db.WithContext(ctx).Find(&users).Error; err != nil {
		return report, fmt.Errorf("failed to load users: %w", err)
	}
	byID := make(map[uint64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var stale []models.Task
	var batch []models.Task
	err := m.db.WithContext(ctx).
		Scopes(database.CreatedBy(creatorIDs...)).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			report.Scanned += len(batch)
			for _, t := range batch {
				creator, ok := byID[t.UserID]
				if !ok {
					continue
				}
				if !sameTeam(t.TeamID, creator.TeamID) || t.UserName != creator.Name {
					stale = append(stale, t)
				}
			}
			return nil
		}).Error
	if err != nil {
		return report, fmt.Errorf("failed to scan tasks: %w", err)
	}

	for _, t := range stale {
		creator := byID[t.UserID]
		res := m.db.WithContext(ctx).Model(&models.Task{}).
			Where("id = ?", t.ID).
			Updates(map[string]interface{}{
				"team_id":   creator.TeamID,
				"user_name": creator.Name,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return report, fmt.Errorf("failed to reconcile task %d: %w", t.ID, res.Error)
		}
		report.Updated += int(res.RowsAffected)

		m.logger.Info("task attribution reconciled",
			zap.Uint64("task_id", t.ID),
			zap.Uint64("creator_id", creator.ID),
			zap.Any("old_team_id", t.TeamID),
			zap.Any("new_team_id", creator.TeamID))
	}

	return report, nil
}

// ReassignReport describes a ReassignUserTeam run.
type ReassignReport struct {
	Changed      bool `json:"changed"`
	TasksUpdated int  `json:"tasks_updated"`
}

// ReassignUserTeam moves a user to teamID (nil removes them from any team).
// With reconcile set the user's existing tasks are re-attributed as well.
func (m *Maintainer) ReassignUserTeam(ctx context.Context, userID uint64, teamID *uint64, reconcile bool) (ReassignReport, error) {
	var report ReassignReport

	var user models.User
	if err := m.db.WithContext(ctx).Scopes(database.ActiveUsers).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report, ErrUserNotFound
		}
		return report, fmt.Errorf("failed to find user: %w", err)
	}

	if teamID != nil {
		var team models.Team
		if err := m.db.WithContext(ctx).First(&team, *teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return report, ErrTeamNotFound
			}
			return report, fmt.Errorf("failed to find team: %w", err)
		}
	}

	if !sameTeam(user.TeamID, teamID) {
		err := m.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"team_id": teamID,
				"version": gorm.Expr("version + 1"),
			}).Error
		if err != nil {
			return report, fmt.Errorf("failed to update user team: %w", err)
		}
		report.Changed = true
		m.logger.Info("user team reassigned",
			zap.Uint64("user_id", user.ID),
			zap.Any("old_team_id", user.TeamID),
			zap.Any("new_team_id", teamID))
	}

	if reconcile {
		rec, err := m.ReconcileTaskAttribution(ctx, user.ID)
		if err != nil {
			return report, err
		}
		report.TasksUpdated = rec.Updated
	}

	return report, nil
}

func sameTeam(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
