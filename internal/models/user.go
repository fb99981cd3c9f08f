package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleEmployee       Role = "employee"
	RoleTeamLeader     Role = "team_leader"
	RoleRetailDirector Role = "retail_director"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleTeamLeader, RoleRetailDirector:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusDeleted UserStatus = "deleted"
)

// User is never hard-deleted; removal flips Status to deleted.
type User struct {
	ID                    uint64     `gorm:"primarykey" json:"id"`
	Name                  string     `gorm:"type:varchar(255);not null" json:"name"`
	Email                 string     `gorm:"type:varchar(255);index;not null" json:"email"`
	PasswordHash          string     `gorm:"type:varchar(255)" json:"-"`
	TempPassword          string     `gorm:"type:varchar(255)" json:"-"`
	Role                  Role       `gorm:"type:varchar(32);not null;default:'employee'" json:"role"`
	TeamID                *uint64    `gorm:"index" json:"team_id"`
	Location              string     `gorm:"type:varchar(255)" json:"location"`
	Department            string     `gorm:"type:varchar(255)" json:"department"`
	Status                UserStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	PasswordChanged       bool       `gorm:"not null;default:false" json:"password_changed"`
	RequirePasswordChange bool       `gorm:"not null;default:false" json:"require_password_change"`
	BlockAppAccess        bool       `gorm:"not null;default:false" json:"block_app_access"`
	Version               uint64     `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Status != UserStatusDeleted
}

func (u *User) IsDirector() bool {
	return u.Role == RoleRetailDirector
}

func (u *User) IsTeamLeader() bool {
	return u.Role == RoleTeamLeader
}

func (u *User) IsEmployee() bool {
	return !u.IsDirector() && !u.IsTeamLeader()
}

// InTeam reports whether the user currently belongs to teamID.
func (u *User) InTeam(teamID uint64) bool {
	return u.TeamID != nil && *u.TeamID == teamID
}

// BeforeCreate fills defaults the struct must carry back to the caller.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Version == 0 {
		u.Version = 1
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if u.Role == "" {
		u.Role = RoleEmployee
	}
	return nil
}
