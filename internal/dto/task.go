package dto

import (
	"time"

	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/services"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.TaskType     `json:"type"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Date        *time.Time          `json:"date"`
	Deadline    *time.Time          `json:"deadline"`
	UserID      uint64              `json:"user_id"`
	UserName    string              `json:"user_name"`
	TeamID      *uint64             `json:"team_id"`
	AssignedTo  *uint64             `json:"assigned_to"`
	Visibility  models.Visibility   `json:"visibility"`
	IsShared    bool                `json:"is_shared"`
	SharedWith  []uint64            `json:"shared_with"`
	Version     uint64              `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskListResponse represents one page of a resolved view
type TaskListResponse struct {
	View       string    `json:"view"`
	Denied     bool      `json:"denied"`
	Tasks      []TaskDTO `json:"tasks"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Type:        task.Type,
		Status:      task.Status,
		Priority:    task.Priority,
		Date:        task.Date,
		Deadline:    task.Deadline,
		UserID:      task.UserID,
		UserName:    task.UserName,
		TeamID:      task.TeamID,
		AssignedTo:  task.AssignedTo,
		Visibility:  task.Visibility,
		IsShared:    task.IsShared,
		SharedWith:  task.SharedWith(),
		Version:     task.Version,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskListResponse converts a resolved page to TaskListResponse
func ToTaskListResponse(page *services.TaskPage, pageNum, pageSize int) TaskListResponse {
	items := make([]TaskDTO, len(page.Tasks))
	for i, task := range page.Tasks {
		items[i] = ToTaskDTO(task)
	}

	totalPages := int(page.Total) / pageSize
	if int(page.Total)%pageSize > 0 {
		totalPages++
	}

	return TaskListResponse{
		View:       string(page.Mode),
		Denied:     page.Denied,
		Tasks:      items,
		Page:       pageNum,
		PageSize:   pageSize,
		TotalCount: page.Total,
		TotalPages: totalPages,
	}
}
