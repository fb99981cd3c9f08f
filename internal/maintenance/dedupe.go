package maintenance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/models"
)

// DedupeReport counts what DedupeUsers merged.
type DedupeReport struct {
	Groups          int `json:"groups"`
	Removed         int `json:"removed"`
	TasksRepointed  int `json:"tasks_repointed"`
	SharesRepointed int `json:"shares_repointed"`
}

// DedupeUsers merges active users that share an email, ignoring case. The
// oldest account is kept. The others are soft deleted after their tasks,
// assignments, shares and team leadership move to the kept account.
func (m *Maintainer) DedupeUsers(ctx context.Context) (DedupeReport, error) {
	var report DedupeReport

	var users []models.User
	if err := m.db.WithContext(ctx).Scopes(database.ActiveUsers).Order("id ASC").Find(&users).Error; err != nil {
		return report, fmt.Errorf("failed to load users: %w", err)
	}

	groups := make(map[string][]models.User)
	var order []string
	for _, u := range users {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], u)
	}

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		slices.SortStableFunc(group, func(a, b models.User) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			}
			return 0
		})

		keep := group[0]
		report.Groups++
		for _, dup := range group[1:] {
			tasks, shares, err := m.merge(ctx, keep, dup)
			if err != nil {
				return report, fmt.Errorf("failed to merge user %d into %d: %w", dup.ID, keep.ID, err)
			}
			report.Removed++
			report.TasksRepointed += tasks
			report.SharesRepointed += shares

			m.logger.Info("duplicate user merged",
				zap.String("email", keep.Email),
				zap.Uint64("kept_id", keep.ID),
				zap.Uint64("removed_id", dup.ID),
				zap.Int("tasks", tasks),
				zap.Int("shares", shares))
		}
	}

	return report, nil
}

func (m *Maintainer) merge(ctx context.Context, keep, dup models.User) (tasks, shares int, err error) {
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Model(&models.Task{}).
			Where("user_id = ?", dup.ID).
			Updates(map[string]interface{}{
				"user_id":   keep.ID,
				"user_name": keep.Name,
				"team_id":   keep.TeamID,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		tasks = int(res.RowsAffected)

		if err := tx.Unscoped().Model(&models.Task{}).
			Where("assigned_to = ?", dup.ID).
			Updates(map[string]interface{}{
				"assigned_to": keep.ID,
				"version":     gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		var dupShares []models.TaskShare
		if err := tx.Where("user_id = ?", dup.ID).Find(&dupShares).Error; err != nil {
			return err
		}
		if len(dupShares) > 0 {
			moved := make([]models.TaskShare, len(dupShares))
			for i, s := range dupShares {
				moved[i] = models.TaskShare{TaskID: s.TaskID, UserID: keep.ID}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&moved).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", dup.ID).Delete(&models.TaskShare{}).Error; err != nil {
				return err
			}
			shares = len(dupShares)
		}

		// A share with the task's own creator is meaningless after the merge.
		if err := tx.Where("user_id = ? AND task_id IN (?)", keep.ID,
			tx.Unscoped().Model(&models.Task{}).Select("id").Where("user_id = ?", keep.ID),
		).Delete(&models.TaskShare{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Model(&models.Task{}).
			Where("user_id = ?", keep.ID).
			Update("is_shared", gorm.Expr(
				"visibility = ? OR EXISTS (SELECT 1 FROM task_shares WHERE task_shares.task_id = tasks.id)",
				models.VisibilityShared,
			)).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Team{}).
			Where("leader_id = ?", dup.ID).
			Update("leader_id", keep.ID).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", dup.ID).
			Updates(map[string]interface{}{
				"status":  models.UserStatusDeleted,
				"version": gorm.Expr("version + 1"),
			}).Error
	})
	return tasks, shares, err
}
