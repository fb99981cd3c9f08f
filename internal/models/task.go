package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskType string

const (
	TaskTypePersonal TaskType = "personal"
	TaskTypeReport   TaskType = "report"
	TaskTypeMeeting  TaskType = "meeting"
	TaskTypeOther    TaskType = "other"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypePersonal, TaskTypeReport, TaskTypeMeeting, TaskTypeOther:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPersonal Visibility = "personal"
	VisibilityTeam     Visibility = "team"
	VisibilityShared   Visibility = "shared"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPersonal, VisibilityTeam, VisibilityShared:
		return true
	}
	return false
}

// Task keeps UserName and TeamID as snapshots of the creator taken at
// creation time. They drift when the creator moves teams.
type Task struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Type        TaskType       `gorm:"type:varchar(32);not null;default:'other'" json:"type"`
	Status      TaskStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority    TaskPriority   `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	Date        *time.Time     `json:"date"`
	Deadline    *time.Time     `json:"deadline"`
	UserID      uint64         `gorm:"not null;index" json:"user_id"`
	UserName    string         `gorm:"type:varchar(255)" json:"user_name"`
	TeamID      *uint64        `gorm:"index" json:"team_id"`
	AssignedTo  *uint64        `gorm:"index" json:"assigned_to"`
	Visibility  Visibility     `gorm:"type:varchar(20);not null;default:'personal'" json:"visibility"`
	IsShared    bool           `gorm:"not null;default:false" json:"is_shared"`
	Version     uint64         `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Shares []TaskShare `gorm:"foreignKey:TaskID" json:"-"`
}

// SharedWith returns the ids of users the task is explicitly shared with.
func (t *Task) SharedWith() []uint64 {
	ids := make([]uint64, 0, len(t.Shares))
	for _, s := range t.Shares {
		ids = append(ids, s.UserID)
	}
	return ids
}

func (t *Task) IsSharedWith(userID uint64) bool {
	for _, s := range t.Shares {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

func (t *Task) IsAssignedTo(userID uint64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// SyncShared recomputes IsShared from Visibility and Shares.
func (t *Task) SyncShared() {
	t.IsShared = t.Visibility == VisibilityShared || len(t.Shares) > 0
}

// BeforeCreate fills defaults the struct must carry back to the caller.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.Version == 0 {
		t.Version = 1
	}
	if t.Type == "" {
		t.Type = TaskTypeOther
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = TaskPriorityMedium
	}
	if t.Visibility == "" {
		t.Visibility = VisibilityPersonal
	}
	t.SyncShared()
	return nil
}
