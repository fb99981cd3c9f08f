package models

import (
	"time"
)

// Team.LeaderID is expected to reference a team_leader whose TeamID is this
// team, but imported data does not always agree.
type Team struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	LeaderID   *uint64   `gorm:"index" json:"leader_id"`
	Location   string    `gorm:"type:varchar(255)" json:"location"`
	Department string    `gorm:"type:varchar(255)" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t *Team) LedBy(userID uint64) bool {
	return t.LeaderID != nil && *t.LeaderID == userID
}
