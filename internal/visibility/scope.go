package visibility

import "github.com/yukikurage/retail-tasks/internal/models"

// teamScope describes which teams a viewer may browse. Directors see all of
// them; leaders see their own team plus every team they lead; employees see
// only their own team.
type teamScope struct {
	all   bool
	teams map[uint64]struct{}
}

func scopeFor(dir Directory, viewer models.User) teamScope {
	if viewer.IsDirector() {
		return teamScope{all: true}
	}

	s := teamScope{teams: make(map[uint64]struct{})}
	if viewer.TeamID != nil {
		s.teams[*viewer.TeamID] = struct{}{}
	}
	if viewer.IsTeamLeader() {
		for _, id := range dir.TeamsLedBy(viewer.ID) {
			s.teams[id] = struct{}{}
		}
	}
	return s
}

func (s teamScope) includes(teamID uint64) bool {
	if s.all {
		return true
	}
	_, ok := s.teams[teamID]
	return ok
}

// CanViewTeam reports whether viewer may request the team view of teamID.
func CanViewTeam(dir Directory, viewer models.User, teamID uint64) bool {
	return scopeFor(dir, viewer).includes(teamID)
}

// CanViewMembers reports whether viewer may use the member view at all.
func CanViewMembers(viewer models.User) bool {
	return !viewer.IsEmployee()
}

// CanManageMember reports whether member's tasks fall inside viewer's
// member view.
func CanManageMember(dir Directory, viewer, member models.User) bool {
	if !CanViewMembers(viewer) || !member.IsActive() {
		return false
	}
	if viewer.IsDirector() {
		return true
	}
	return member.TeamID != nil && scopeFor(dir, viewer).includes(*member.TeamID)
}
