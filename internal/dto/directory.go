package dto

import (
	"github.com/yukikurage/retail-tasks/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID         uint64      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	TeamID     *uint64     `json:"team_id"`
	Location   string      `json:"location,omitempty"`
	Department string      `json:"department,omitempty"`
	Version    uint64      `json:"version"`
}

// TeamDTO represents a team in API responses
type TeamDTO struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	LeaderID   *uint64 `json:"leader_id"`
	Location   string  `json:"location,omitempty"`
	Department string  `json:"department,omitempty"`
}

// TeamMembersResponse lists the active members of one team
type TeamMembersResponse struct {
	Team    TeamDTO   `json:"team"`
	Members []UserDTO `json:"members"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		TeamID:     user.TeamID,
		Location:   user.Location,
		Department: user.Department,
		Version:    user.Version,
	}
}

// ToTeamDTO converts a Team model to TeamDTO
func ToTeamDTO(team models.Team) TeamDTO {
	return TeamDTO{
		ID:         team.ID,
		Name:       team.Name,
		LeaderID:   team.LeaderID,
		Location:   team.Location,
		Department: team.Department,
	}
}

// ToTeamDTOs converts teams, returning an empty slice rather than nil
func ToTeamDTOs(teams []models.Team) []TeamDTO {
	out := make([]TeamDTO, len(teams))
	for i, t := range teams {
		out[i] = ToTeamDTO(t)
	}
	return out
}

// ToTeamMembersResponse converts a team and its members
func ToTeamMembersResponse(team models.Team, members []models.User) TeamMembersResponse {
	out := make([]UserDTO, len(members))
	for i, m := range members {
		out[i] = ToUserDTO(m)
	}
	return TeamMembersResponse{
		Team:    ToTeamDTO(team),
		Members: out,
	}
}
