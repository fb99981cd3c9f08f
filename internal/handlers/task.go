package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/dto"
	apierrors "github.com/yukikurage/retail-tasks/internal/errors"
	"github.com/yukikurage/retail-tasks/internal/logging"
	"github.com/yukikurage/retail-tasks/internal/middleware"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/services"
	"github.com/yukikurage/retail-tasks/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *services.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks returns one page of the requested view: personal, team, member
// or shared. A view outside the user's scope is answered with an empty page
// and denied set.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := optionalUintQuery(c, "team_id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team_id")
		return
	}
	memberID, err := optionalUintQuery(c, "member_id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid member_id")
		return
	}

	params := utils.GetPaginationParams(c)
	page, err := h.taskService.ListTasks(services.ListTasksInput{
		ViewerID:   userID,
		View:       c.Query("view"),
		TeamID:     teamID,
		MemberID:   memberID,
		Pagination: params,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(page, params.Page, params.Limit))
}

// CreateTask creates a task owned by the current user
func (h *TaskHandler) CreateTask(c *gin.Context) {
	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Description string              `json:"description"`
		Type        models.TaskType     `json:"type"`
		Status      models.TaskStatus   `json:"status"`
		Priority    models.TaskPriority `json:"priority"`
		Date        *time.Time          `json:"date"`
		Deadline    *time.Time          `json:"deadline"`
		Visibility  models.Visibility   `json:"visibility"`
		AssignedTo  *uint64             `json:"assigned_to"`
		SharedWith  []uint64            `json:"shared_with"`
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		CreatorID:   userID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
		Priority:    req.Priority,
		Date:        req.Date,
		Deadline:    req.Deadline,
		Visibility:  req.Visibility,
		AssignedTo:  req.AssignedTo,
		SharedWith:  req.SharedWith,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GenerateTasks drafts tasks from free text without saving them
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	drafts, err := h.taskService.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		Text:      req.Text,
		CreatorID: userID,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": drafts})
}

// GetTask returns the task loaded by RequireTaskAccess
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not loaded")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// UpdateTask edits a task. The request must carry the version it was read at.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	type UpdateTaskRequest struct {
		Version       uint64               `json:"version" binding:"required"`
		Title         *string              `json:"title"`
		Description   *string              `json:"description"`
		Type          *models.TaskType     `json:"type"`
		Status        *models.TaskStatus   `json:"status"`
		Priority      *models.TaskPriority `json:"priority"`
		Visibility    *models.Visibility   `json:"visibility"`
		Date          *time.Time           `json:"date"`
		ClearDate     bool                 `json:"clear_date"`
		Deadline      *time.Time           `json:"deadline"`
		ClearDeadline bool                 `json:"clear_deadline"`
	}

	task, userID, ok := h.taskContext(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.UpdateTask(services.UpdateTaskInput{
		TaskID:          task.ID,
		ActorID:         userID,
		ExpectedVersion: req.Version,
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		Status:          req.Status,
		Priority:        req.Priority,
		Visibility:      req.Visibility,
		Date:            req.Date,
		ClearDate:       req.ClearDate,
		Deadline:        req.Deadline,
		ClearDeadline:   req.ClearDeadline,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// DeleteTask soft deletes a task owned by the current user
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, userID, ok := h.taskContext(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(task.ID, userID); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignTask sets or clears the task's assignee
func (h *TaskHandler) AssignTask(c *gin.Context) {
	type AssignTaskRequest struct {
		Version    uint64  `json:"version" binding:"required"`
		AssigneeID *uint64 `json:"assignee_id"`
	}

	task, userID, ok := h.taskContext(c)
	if !ok {
		return
	}

	var req AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.AssignTask(services.AssignTaskInput{
		TaskID:          task.ID,
		ActorID:         userID,
		AssigneeID:      req.AssigneeID,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

type shareRequest struct {
	UserIDs []uint64 `json:"user_ids" binding:"required,min=1"`
}

// ShareTask grants read access to other users
func (h *TaskHandler) ShareTask(c *gin.Context) {
	h.changeShares(c, h.taskService.ShareTask)
}

// UnshareTask revokes read access
func (h *TaskHandler) UnshareTask(c *gin.Context) {
	h.changeShares(c, h.taskService.UnshareTask)
}

func (h *TaskHandler) changeShares(c *gin.Context, apply func(services.ShareTaskInput) (*models.Task, error)) {
	task, userID, ok := h.taskContext(c)
	if !ok {
		return
	}

	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := apply(services.ShareTaskInput{
		TaskID:  task.ID,
		ActorID: userID,
		UserIDs: req.UserIDs,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

func (h *TaskHandler) taskContext(c *gin.Context) (models.Task, uint64, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return models.Task{}, 0, false
	}
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not loaded")
		return models.Task{}, 0, false
	}
	return task, userID, true
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.ValidationFailed(c, verr.Field, verr.Err.Error())
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrNotTaskOwner),
		errors.Is(err, services.ErrTaskPermissionDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrTaskVersionConflict):
		apierrors.VersionConflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidViewMode),
		errors.Is(err, services.ErrNoUserIDsProvided):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.Unauthorized(c, "Not authenticated")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, err.Error())
	case errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.ValidationFailed(c, "text", err.Error())
	default:
		logging.FromContext(c, h.logger).Error("task request failed", zap.Error(err))
		apierrors.InternalError(c, "Internal server error")
	}
}

func optionalUintQuery(c *gin.Context, key string) (*uint64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
