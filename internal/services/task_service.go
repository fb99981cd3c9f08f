package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/constants"
	"github.com/yukikurage/retail-tasks/internal/metrics"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/repository"
	"github.com/yukikurage/retail-tasks/internal/utils"
	"github.com/yukikurage/retail-tasks/internal/visibility"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrNotTaskOwner           = errors.New("only the task owner can perform this action")
	ErrTaskPermissionDenied   = errors.New("user does not have permission to modify this task")
	ErrTaskVersionConflict    = errors.New("task was modified by someone else")
	ErrInvalidViewMode        = errors.New("invalid view mode")
	ErrNoUserIDsProvided      = errors.New("at least one user ID is required")
	ErrTitleRequired          = errors.New("title is required")
	ErrTitleTooLong           = errors.New("title is too long")
	ErrInvalidTaskType        = errors.New("invalid task type")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
	ErrInvalidTaskPriority    = errors.New("invalid task priority")
	ErrInvalidVisibility      = errors.New("invalid visibility")
	ErrInvalidTaskUser        = errors.New("one or more users do not exist or are inactive")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

const maxTitleLength = 255

// ValidationError ties a validation failure to the input field it came from.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	directory *DirectoryService
	drafter   TaskDrafter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      visibility.Options
	now       func() time.Time
}

// NewTaskService creates a new TaskService. drafter may be nil.
func NewTaskService(
	taskRepo repository.TaskRepository,
	directory *DirectoryService,
	drafter TaskDrafter,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts visibility.Options,
) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		directory: directory,
		drafter:   drafter,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// ListTasksInput selects a view of the task list
type ListTasksInput struct {
	ViewerID   uint64
	View       string
	TeamID     *uint64
	MemberID   *uint64
	Pagination utils.PaginationParams
}

// TaskPage is one page of a resolved view
type TaskPage struct {
	Mode   visibility.Mode
	Tasks  []models.Task
	Total  int64
	Denied bool
}

// ListTasks resolves the requested view for the viewer and pages through it.
// A view outside the viewer's scope comes back empty with Denied set.
func (s *TaskService) ListTasks(input ListTasksInput) (*TaskPage, error) {
	mode, err := visibility.ParseMode(input.View)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidViewMode, input.View)
	}

	resolver, err := s.resolver(true)
	if err != nil {
		s.metrics.ObserveResolution(string(mode), metrics.OutcomeError)
		return nil, err
	}

	res, err := resolver.Resolve(input.ViewerID, mode, visibility.Params{
		TeamID:   input.TeamID,
		MemberID: input.MemberID,
	})
	if err != nil {
		s.metrics.ObserveResolution(string(mode), metrics.OutcomeError)
		if errors.Is(err, visibility.ErrUnknownViewer) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve tasks: %w", err)
	}

	s.reportDrift(res.Drift)
	if res.Denied {
		s.metrics.ObserveResolution(string(mode), metrics.OutcomeDenied)
		s.logger.Warn("task view denied",
			zap.Uint64("viewer_id", input.ViewerID),
			zap.String("mode", string(mode)),
			zap.Any("team_id", input.TeamID),
			zap.Any("member_id", input.MemberID))
	} else {
		s.metrics.ObserveResolution(string(mode), metrics.OutcomeOK)
	}

	return &TaskPage{
		Mode:   mode,
		Tasks:  utils.PageOf(res.Tasks, input.Pagination),
		Total:  int64(len(res.Tasks)),
		Denied: res.Denied,
	}, nil
}

func (s *TaskService) reportDrift(drift []visibility.Drift) {
	if len(drift) == 0 {
		return
	}
	s.metrics.ObserveDrift(len(drift))
	for _, d := range drift {
		s.logger.Warn("task team drift detected",
			zap.Uint64("task_id", d.TaskID),
			zap.Uint64("creator_id", d.CreatorID),
			zap.Any("stored_team_id", d.StoredTeamID),
			zap.Any("current_team_id", d.CurrentTeamID),
			zap.Bool("reconciled", s.opts.ReconcileOnRead))
	}
}

// resolver builds a resolver over the current directory snapshot. Tasks are
// only loaded when withTasks is set.
func (s *TaskService) resolver(withTasks bool) (*visibility.Resolver, error) {
	dir, err := s.directory.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	var tasks []models.Task
	if withTasks {
		tasks, err = s.taskRepo.ListActive()
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
	}
	return visibility.NewResolver(dir, visibility.NewTaskStore(tasks), s.opts), nil
}

// GetVisibleTask returns a task if the viewer may see it. Tasks outside the
// viewer's views are reported as not found.
func (s *TaskService) GetVisibleTask(viewerID, taskID uint64) (*models.Task, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}

	resolver, err := s.resolver(false)
	if err != nil {
		return nil, err
	}
	ok, err := resolver.CanSee(viewerID, *task)
	if err != nil {
		if errors.Is(err, visibility.ErrUnknownViewer) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check task visibility: %w", err)
	}
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	CreatorID   uint64
	Title       string
	Description string
	Type        models.TaskType
	Status      models.TaskStatus
	Priority    models.TaskPriority
	Date        *time.Time
	Deadline    *time.Time
	Visibility  models.Visibility
	AssignedTo  *uint64
	SharedWith  []uint64
}

// CreateTask creates a task owned by the creator. The creator's name and
// current team are copied onto the task.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if err := validateEnums(input.Type, input.Status, input.Priority, input.Visibility); err != nil {
		return nil, err
	}

	dir, err := s.directory.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	creator, err := dir.GetUser(input.CreatorID)
	if err != nil || !creator.IsActive() {
		return nil, ErrUserNotFound
	}
	if input.AssignedTo != nil {
		if err := requireActiveUsers(dir, []uint64{*input.AssignedTo}); err != nil {
			return nil, invalid("assigned_to", err)
		}
	}

	shareIDs := withoutID(uniqueUint64(input.SharedWith), creator.ID)
	if err := requireActiveUsers(dir, shareIDs); err != nil {
		return nil, invalid("shared_with", err)
	}

	task := &models.Task{
		Title:       title,
		Description: input.Description,
		Type:        input.Type,
		Status:      input.Status,
		Priority:    input.Priority,
		Date:        input.Date,
		Deadline:    input.Deadline,
		UserID:      creator.ID,
		UserName:    creator.Name,
		TeamID:      copyID(creator.TeamID),
		AssignedTo:  input.AssignedTo,
		Visibility:  input.Visibility,
	}
	for _, id := range shareIDs {
		task.Shares = append(task.Shares, models.TaskShare{UserID: id})
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.findTask(task.ID)
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	TaskID          uint64
	ActorID         uint64
	ExpectedVersion uint64
	Title           *string
	Description     *string
	Type            *models.TaskType
	Status          *models.TaskStatus
	Priority        *models.TaskPriority
	Visibility      *models.Visibility
	Date            *time.Time
	ClearDate       bool
	Deadline        *time.Time
	ClearDeadline   bool
}

// UpdateTask edits a task. The owner and the assignee may edit; only the
// owner may change visibility. The write fails if the task changed since
// ExpectedVersion.
func (s *TaskService) UpdateTask(input UpdateTaskInput) (*models.Task, error) {
	task, err := s.findTask(input.TaskID)
	if err != nil {
		return nil, err
	}

	if task.UserID != input.ActorID && !task.IsAssignedTo(input.ActorID) {
		return nil, ErrTaskPermissionDenied
	}
	if input.Visibility != nil && task.UserID != input.ActorID {
		return nil, ErrNotTaskOwner
	}
	if task.Version != input.ExpectedVersion {
		return nil, ErrTaskVersionConflict
	}

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if err := validateEnums(deref(input.Type), deref(input.Status), deref(input.Priority), deref(input.Visibility)); err != nil {
		return nil, err
	}
	if input.Type != nil {
		task.Type = *input.Type
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Visibility != nil {
		task.Visibility = *input.Visibility
	}
	if input.ClearDate {
		task.Date = nil
	} else if input.Date != nil {
		task.Date = input.Date
	}
	if input.ClearDeadline {
		task.Deadline = nil
	} else if input.Deadline != nil {
		task.Deadline = input.Deadline
	}
	task.SyncShared()

	if err := s.taskRepo.Update(task, input.ExpectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrTaskVersionConflict
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.findTask(task.ID)
}

// DeleteTask soft deletes a task if the actor owns it
func (s *TaskService) DeleteTask(taskID, actorID uint64) error {
	task, err := s.findTask(taskID)
	if err != nil {
		return err
	}

	if task.UserID != actorID {
		return ErrNotTaskOwner
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// AssignTaskInput represents input for assigning a task
type AssignTaskInput struct {
	TaskID          uint64
	ActorID         uint64
	AssigneeID      *uint64
	ExpectedVersion uint64
}

// AssignTask sets or clears the assignee. The owner may assign, and so may a
// leader or director whose member view covers the owner.
func (s *TaskService) AssignTask(input AssignTaskInput) (*models.Task, error) {
	task, err := s.findTask(input.TaskID)
	if err != nil {
		return nil, err
	}

	dir, err := s.directory.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	if task.UserID != input.ActorID {
		actor, actorErr := dir.GetUser(input.ActorID)
		owner, ownerErr := dir.GetUser(task.UserID)
		if actorErr != nil || ownerErr != nil || !actor.IsActive() || !visibility.CanManageMember(dir, actor, owner) {
			return nil, ErrTaskPermissionDenied
		}
	}
	if input.AssigneeID != nil {
		if err := requireActiveUsers(dir, []uint64{*input.AssigneeID}); err != nil {
			return nil, invalid("assignee_id", err)
		}
	}
	if task.Version != input.ExpectedVersion {
		return nil, ErrTaskVersionConflict
	}

	task.AssignedTo = input.AssigneeID
	if err := s.taskRepo.Update(task, input.ExpectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrTaskVersionConflict
		}
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	return s.findTask(task.ID)
}

// ShareTaskInput represents input for sharing or unsharing a task
type ShareTaskInput struct {
	TaskID  uint64
	ActorID uint64
	UserIDs []uint64
}

// ShareTask grants read access to the given users. Only the owner may share.
func (s *TaskService) ShareTask(input ShareTaskInput) (*models.Task, error) {
	task, userIDs, err := s.prepareShare(input)
	if err != nil {
		return nil, err
	}

	dir, err := s.directory.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	userIDs = withoutID(userIDs, task.UserID)
	if err := requireActiveUsers(dir, userIDs); err != nil {
		return nil, invalid("user_ids", err)
	}

	if err := s.taskRepo.AddShares(task.ID, userIDs); err != nil {
		return nil, fmt.Errorf("failed to share task: %w", err)
	}

	return s.findTask(task.ID)
}

// UnshareTask revokes shares. Only the owner may unshare.
func (s *TaskService) UnshareTask(input ShareTaskInput) (*models.Task, error) {
	task, userIDs, err := s.prepareShare(input)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.RemoveShares(task.ID, userIDs); err != nil {
		return nil, fmt.Errorf("failed to unshare task: %w", err)
	}

	return s.findTask(task.ID)
}

func (s *TaskService) prepareShare(input ShareTaskInput) (*models.Task, []uint64, error) {
	if len(input.UserIDs) == 0 {
		return nil, nil, ErrNoUserIDsProvided
	}

	task, err := s.findTask(input.TaskID)
	if err != nil {
		return nil, nil, err
	}
	if task.UserID != input.ActorID {
		return nil, nil, ErrNotTaskOwner
	}
	return task, uniqueUint64(input.UserIDs), nil
}

// GenerateTasksInput represents input for AI task drafting
type GenerateTasksInput struct {
	Text      string
	CreatorID uint64
}

// GenerateTasks drafts tasks from free text. Drafts are not saved.
func (s *TaskService) GenerateTasks(ctx context.Context, input GenerateTasksInput) ([]DraftedTask, error) {
	if s.drafter == nil {
		return nil, ErrAIServiceNotConfigured
	}

	drafts, err := s.drafter.DraftTasks(ctx, input.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(drafts) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(drafts) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	valid := make([]DraftedTask, 0, len(drafts))
	cutoff := s.now().Add(-24 * time.Hour)
	for _, d := range drafts {
		d.Title = strings.TrimSpace(d.Title)
		if d.Title == "" || len([]rune(d.Title)) > maxTitleLength {
			continue
		}
		if !models.TaskType(d.Type).Valid() {
			d.Type = string(models.TaskTypeOther)
		}
		if !models.TaskPriority(d.Priority).Valid() {
			d.Priority = string(models.TaskPriorityMedium)
		}
		if d.Deadline != nil && d.Deadline.Before(cutoff) {
			d.Deadline = nil
		}
		valid = append(valid, d)
	}

	if len(valid) == 0 {
		return nil, ErrAINoValidTasks
	}

	s.logger.Info("tasks drafted", zap.Uint64("user_id", input.CreatorID), zap.Int("count", len(valid)))
	return valid, nil
}

func (s *TaskService) findTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Shares")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", ErrTitleRequired)
	}
	if len([]rune(title)) > maxTitleLength {
		return "", invalid("title", ErrTitleTooLong)
	}
	return title, nil
}

// validateEnums checks the enum fields that are set. Empty values take the
// model defaults.
func validateEnums(typ models.TaskType, status models.TaskStatus, priority models.TaskPriority, vis models.Visibility) error {
	switch {
	case typ != "" && !typ.Valid():
		return invalid("type", ErrInvalidTaskType)
	case status != "" && !status.Valid():
		return invalid("status", ErrInvalidTaskStatus)
	case priority != "" && !priority.Valid():
		return invalid("priority", ErrInvalidTaskPriority)
	case vis != "" && !vis.Valid():
		return invalid("visibility", ErrInvalidVisibility)
	}
	return nil
}

func requireActiveUsers(dir visibility.Directory, ids []uint64) error {
	for _, id := range ids {
		u, err := dir.GetUser(id)
		if err != nil || !u.IsActive() {
			return ErrInvalidTaskUser
		}
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func copyID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func withoutID(ids []uint64, drop uint64) []uint64 {
	return slices.DeleteFunc(ids, func(id uint64) bool { return id == drop })
}

// uniqueUint64 removes duplicate IDs while preserving order
func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
