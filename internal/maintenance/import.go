package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yukikurage/retail-tasks/internal/models"
)

var (
	ErrInvalidBatch        = errors.New("maintenance: invalid import batch")
	ErrUnresolvedReference = errors.New("maintenance: unresolved reference")
)

// Batch is the import file format. Rows are matched by id.
type Batch struct {
	Teams []TeamRecord `json:"teams"`
	Users []UserRecord `json:"users"`
	Tasks []TaskRecord `json:"tasks"`
}

type TeamRecord struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	LeaderID   *uint64 `json:"leader_id"`
	Location   string  `json:"location"`
	Department string  `json:"department"`
}

type UserRecord struct {
	ID                    uint64            `json:"id"`
	Name                  string            `json:"name"`
	Email                 string            `json:"email"`
	Role                  models.Role       `json:"role"`
	TeamID                *uint64           `json:"team_id"`
	Location              string            `json:"location"`
	Department            string            `json:"department"`
	Status                models.UserStatus `json:"status"`
	TempPassword          string            `json:"temp_password"`
	PasswordChanged       bool              `json:"password_changed"`
	RequirePasswordChange bool              `json:"require_password_change"`
	BlockAppAccess        bool              `json:"block_app_access"`
}

// TaskRecord omits the creator's name and team; both are taken from the
// creator on import.
type TaskRecord struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.TaskType     `json:"type"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Date        *time.Time          `json:"date"`
	Deadline    *time.Time          `json:"deadline"`
	UserID      uint64              `json:"user_id"`
	AssignedTo  *uint64             `json:"assigned_to"`
	Visibility  models.Visibility   `json:"visibility"`
	SharedWith  []uint64            `json:"shared_with"`
	CreatedAt   *time.Time          `json:"created_at"`
}

// ImportCounts reports rows per table.
type ImportCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

type ImportReport struct {
	Teams ImportCounts `json:"teams"`
	Users ImportCounts `json:"users"`
	Tasks ImportCounts `json:"tasks"`
}

// DecodeBatch reads a JSON batch.
func DecodeBatch(r io.Reader) (*Batch, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var b Batch
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return &b, nil
}

// ImportBatch upserts teams, users and tasks in one transaction. Every
// reference must resolve to a row in the batch or in the database, otherwise
// nothing is written. Rows equal to what is stored are left alone.
func (m *Maintainer) ImportBatch(ctx context.Context, b *Batch) (ImportReport, error) {
	var report ImportReport
	if err := b.validate(); err != nil {
		return report, err
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := b.resolveReferences(tx); err != nil {
			return err
		}

		var err error
		if report.Teams, err = importTeams(tx, b.Teams); err != nil {
			return fmt.Errorf("failed to import teams: %w", err)
		}
		if report.Users, err = importUsers(tx, b.Users); err != nil {
			return fmt.Errorf("failed to import users: %w", err)
		}
		if report.Tasks, err = importTasks(tx, b.Tasks); err != nil {
			return fmt.Errorf("failed to import tasks: %w", err)
		}
		return resetSequences(tx)
	})
	if err != nil {
		return ImportReport{}, err
	}

	m.logger.Info("import batch applied",
		zap.Any("teams", report.Teams),
		zap.Any("users", report.Users),
		zap.Any("tasks", report.Tasks))
	return report, nil
}

func (b *Batch) validate() error {
	seen := map[string]map[uint64]bool{"team": {}, "user": {}, "task": {}}
	check := func(kind string, id uint64) error {
		if id == 0 {
			return fmt.Errorf("%w: %s without id", ErrInvalidBatch, kind)
		}
		if seen[kind][id] {
			return fmt.Errorf("%w: duplicate %s id %d", ErrInvalidBatch, kind, id)
		}
		seen[kind][id] = true
		return nil
	}

	for _, t := range b.Teams {
		if err := check("team", t.ID); err != nil {
			return err
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: team %d has no name", ErrInvalidBatch, t.ID)
		}
	}
	for _, u := range b.Users {
		if err := check("user", u.ID); err != nil {
			return err
		}
		if strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("%w: user %d has no email", ErrInvalidBatch, u.ID)
		}
		if u.Role != "" && !u.Role.Valid() {
			return fmt.Errorf("%w: user %d has role %q", ErrInvalidBatch, u.ID, u.Role)
		}
	}
	for _, t := range b.Tasks {
		if err := check("task", t.ID); err != nil {
			return err
		}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: task %d has no title", ErrInvalidBatch, t.ID)
		}
		switch {
		case t.Type != "" && !t.Type.Valid(),
			t.Status != "" && !t.Status.Valid(),
			t.Priority != "" && !t.Priority.Valid(),
			t.Visibility != "" && !t.Visibility.Valid():
			return fmt.Errorf("%w: task %d has an unknown enum value", ErrInvalidBatch, t.ID)
		}
	}
	return nil
}

// resolveReferences checks that every team and user id the batch points at
// exists in the batch or in the database.
func (b *Batch) resolveReferences(tx *gorm.DB) error {
	teams := make(map[uint64]bool)
	users := make(map[uint64]bool)
	for _, t := range b.Teams {
		teams[t.ID] = true
	}
	for _, u := range b.Users {
		users[u.ID] = true
	}

	var teamRefs, userRefs []uint64
	for _, t := range b.Teams {
		if t.LeaderID != nil {
			userRefs = append(userRefs, *t.LeaderID)
		}
	}
	for _, u := range b.Users {
		if u.TeamID != nil {
			teamRefs = append(teamRefs, *u.TeamID)
		}
	}
	for _, t := range b.Tasks {
		userRefs = append(userRefs, t.UserID)
		if t.AssignedTo != nil {
			userRefs = append(userRefs, *t.AssignedTo)
		}
		userRefs = append(userRefs, t.SharedWith...)
	}

	if err := lookupMissing(tx, &models.Team{}, teams, teamRefs); err != nil {
		return fmt.Errorf("%w: team %v", ErrUnresolvedReference, err)
	}
	if err := lookupMissing(tx, &models.User{}, users, userRefs); err != nil {
		return fmt.Errorf("%w: user %v", ErrUnresolvedReference, err)
	}
	return nil
}

type missingIDs []uint64

func (m missingIDs) Error() string {
	return fmt.Sprint([]uint64(m))
}

func lookupMissing(tx *gorm.DB, model interface{}, known map[uint64]bool, refs []uint64) error {
	var unknown []uint64
	for _, id := range refs {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	var found []uint64
	if err := tx.Model(model).Where("id IN ?", unknown).Pluck("id", &found).Error; err != nil {
		return err
	}
	for _, id := range found {
		known[id] = true
	}

	var missing missingIDs
	for _, id := range unknown {
		if !known[id] {
			missing = append(missing, id)
			known[id] = true
		}
	}
	if len(missing) > 0 {
		return missing
	}
	return nil
}

func importTeams(tx *gorm.DB, records []TeamRecord) (ImportCounts, error) {
	var counts ImportCounts
	for _, r := range records {
		var team models.Team
		err := tx.First(&team, r.ID).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return counts, err
		}

		before := team
		team.ID = r.ID
		team.Name = strings.TrimSpace(r.Name)
		team.LeaderID = r.LeaderID
		team.Location = r.Location
		team.Department = r.Department

		switch {
		case !exists:
			if err := tx.Create(&team).Error; err != nil {
				return counts, err
			}
			counts.Created++
		case sameTeamRow(before, team):
			counts.Unchanged++
		default:
			if err := tx.Save(&team).Error; err != nil {
				return counts, err
			}
			counts.Updated++
		}
	}
	return counts, nil
}

func sameTeamRow(a, b models.Team) bool {
	return a.Name == b.Name && sameTeam(a.LeaderID, b.LeaderID) &&
		a.Location == b.Location && a.Department == b.Department
}

func importUsers(tx *gorm.DB, records []UserRecord) (ImportCounts, error) {
	var counts ImportCounts
	for _, r := range records {
		var user models.User
		err := tx.First(&user, r.ID).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return counts, err
		}

		before := user
		user.ID = r.ID
		user.Name = strings.TrimSpace(r.Name)
		user.Email = strings.TrimSpace(r.Email)
		user.Role = r.Role
		if user.Role == "" {
			user.Role = models.RoleEmployee
		}
		user.TeamID = r.TeamID
		user.Location = r.Location
		user.Department = r.Department
		user.Status = r.Status
		if user.Status == "" {
			user.Status = models.UserStatusActive
		}
		user.PasswordChanged = r.PasswordChanged
		user.RequirePasswordChange = r.RequirePasswordChange
		user.BlockAppAccess = r.BlockAppAccess
		// A temp password only applies to accounts that never set one.
		if user.PasswordHash == "" {
			user.TempPassword = r.TempPassword
		}

		switch {
		case !exists:
			if err := tx.Create(&user).Error; err != nil {
				return counts, err
			}
			counts.Created++
		case sameUserRow(before, user):
			counts.Unchanged++
		default:
			user.Version = before.Version + 1
			if err := tx.Save(&user).Error; err != nil {
				return counts, err
			}
			counts.Updated++
		}
	}
	return counts, nil
}

func sameUserRow(a, b models.User) bool {
	return a.Name == b.Name && a.Email == b.Email && a.Role == b.Role &&
		sameTeam(a.TeamID, b.TeamID) && a.Location == b.Location &&
		a.Department == b.Department && a.Status == b.Status &&
		a.TempPassword == b.TempPassword && a.PasswordChanged == b.PasswordChanged &&
		a.RequirePasswordChange == b.RequirePasswordChange && a.BlockAppAccess == b.BlockAppAccess
}

func importTasks(tx *gorm.DB, records []TaskRecord) (ImportCounts, error) {
	var counts ImportCounts
	for _, r := range records {
		var creator models.User
		if err := tx.First(&creator, r.UserID).Error; err != nil {
			return counts, err
		}

		var task models.Task
		err := tx.Unscoped().First(&task, r.ID).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return counts, err
		}

		before := task
		task.ID = r.ID
		task.Title = strings.TrimSpace(r.Title)
		task.Description = r.Description
		task.Type = orDefault(r.Type, models.TaskTypeOther)
		task.Status = orDefault(r.Status, models.TaskStatusPending)
		task.Priority = orDefault(r.Priority, models.TaskPriorityMedium)
		task.Visibility = orDefault(r.Visibility, models.VisibilityPersonal)
		task.Date = r.Date
		task.Deadline = r.Deadline
		task.UserID = creator.ID
		task.UserName = creator.Name
		task.TeamID = creator.TeamID
		task.AssignedTo = r.AssignedTo
		if !exists && r.CreatedAt != nil {
			task.CreatedAt = *r.CreatedAt
		}

		changed := !exists || !sameTaskRow(before, task)
		if changed {
			if exists {
				task.Version = before.Version + 1
				if err := tx.Unscoped().Omit(clause.Associations).Save(&task).Error; err != nil {
					return counts, err
				}
			} else if err := tx.Omit(clause.Associations).Create(&task).Error; err != nil {
				return counts, err
			}
		}

		added, err := addShares(tx, task.ID, creator.ID, r.SharedWith)
		if err != nil {
			return counts, err
		}

		switch {
		case !exists:
			counts.Created++
		case changed || added:
			counts.Updated++
		default:
			counts.Unchanged++
		}
	}
	return counts, nil
}

func sameTaskRow(a, b models.Task) bool {
	return a.Title == b.Title && a.Description == b.Description && a.Type == b.Type &&
		a.Status == b.Status && a.Priority == b.Priority && a.Visibility == b.Visibility &&
		sameTime(a.Date, b.Date) && sameTime(a.Deadline, b.Deadline) &&
		a.UserID == b.UserID && a.UserName == b.UserName &&
		sameTeam(a.TeamID, b.TeamID) && sameTeam(a.AssignedTo, b.AssignedTo)
}

// addShares adds missing shares and keeps is_shared in step. It reports
// whether anything changed.
func addShares(tx *gorm.DB, taskID, ownerID uint64, userIDs []uint64) (bool, error) {
	var rows []models.TaskShare
	for _, id := range userIDs {
		if id != ownerID {
			rows = append(rows, models.TaskShare{TaskID: taskID, UserID: id})
		}
	}

	var added int64
	if len(rows) > 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if res.Error != nil {
			return false, res.Error
		}
		added = res.RowsAffected
	}

	var task models.Task
	if err := tx.Unscoped().Preload("Shares").First(&task, taskID).Error; err != nil {
		return false, err
	}
	shared := task.IsShared
	task.SyncShared()
	if task.IsShared != shared {
		if err := tx.Unscoped().Model(&models.Task{}).Where("id = ?", taskID).
			Update("is_shared", task.IsShared).Error; err != nil {
			return false, err
		}
	}
	return added > 0, nil
}

// resetSequences moves postgres id sequences past imported ids.
func resetSequences(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range []string{"teams", "users", "tasks"} {
		if err := tx.Exec(fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))",
			table, table,
		)).Error; err != nil {
			return err
		}
	}
	return nil
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
