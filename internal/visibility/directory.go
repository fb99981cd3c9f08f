package visibility

import (
	"errors"
	"slices"

	"github.com/yukikurage/retail-tasks/internal/models"
)

// ErrNotFound is returned for unknown user or team ids. Resolution treats it
// as "exclude", never as a failure.
var ErrNotFound = errors.New("not found")

// Directory answers who is in which team and who leads it.
type Directory interface {
	GetUser(id uint64) (models.User, error)
	GetTeam(id uint64) (models.Team, error)
	// GetTeamMembers returns the active users whose team is teamID.
	GetTeamMembers(teamID uint64) []models.User
	// ActiveUsers returns every active user.
	ActiveUsers() []models.User
	// TeamsLedBy returns the ids of teams whose leader_id is userID.
	TeamsLedBy(userID uint64) []uint64
}

// MemoryDirectory is an immutable snapshot of users and teams.
type MemoryDirectory struct {
	users   map[uint64]models.User
	teams   map[uint64]models.Team
	members map[uint64][]models.User
	active  []models.User
}

// NewDirectory indexes users and teams. Later duplicates of an id win.
func NewDirectory(users []models.User, teams []models.Team) *MemoryDirectory {
	d := &MemoryDirectory{
		users:   make(map[uint64]models.User, len(users)),
		teams:   make(map[uint64]models.Team, len(teams)),
		members: make(map[uint64][]models.User),
	}
	for _, u := range users {
		d.users[u.ID] = u
	}
	for _, t := range teams {
		d.teams[t.ID] = t
	}
	for _, u := range d.users {
		if !u.IsActive() {
			continue
		}
		d.active = append(d.active, u)
		if u.TeamID != nil {
			d.members[*u.TeamID] = append(d.members[*u.TeamID], u)
		}
	}
	byID := func(a, b models.User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	slices.SortFunc(d.active, byID)
	for id := range d.members {
		slices.SortFunc(d.members[id], byID)
	}
	return d
}

func (d *MemoryDirectory) GetUser(id uint64) (models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) GetTeam(id uint64) (models.Team, error) {
	t, ok := d.teams[id]
	if !ok {
		return models.Team{}, ErrNotFound
	}
	return t, nil
}

func (d *MemoryDirectory) GetTeamMembers(teamID uint64) []models.User {
	return slices.Clone(d.members[teamID])
}

func (d *MemoryDirectory) ActiveUsers() []models.User {
	return slices.Clone(d.active)
}

// Teams returns every team ordered by id.
func (d *MemoryDirectory) Teams() []models.Team {
	teams := make([]models.Team, 0, len(d.teams))
	for _, t := range d.teams {
		teams = append(teams, t)
	}
	slices.SortFunc(teams, func(a, b models.Team) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return teams
}

func (d *MemoryDirectory) TeamsLedBy(userID uint64) []uint64 {
	var ids []uint64
	for _, t := range d.teams {
		if t.LedBy(userID) {
			ids = append(ids, t.ID)
		}
	}
	slices.Sort(ids)
	return ids
}
