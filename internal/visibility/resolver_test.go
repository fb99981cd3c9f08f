package visibility

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/yukikurage/retail-tasks/internal/models"
)

func ptr(v uint64) *uint64 { return &v }

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// ResolverTestSuite works on a small retail organisation:
//
//	team 1 "Hà Nội"   leader 10, employees 11 (Lê Khánh Duy), 12
//	team 2 "Sài Gòn"  leader 20, employee 21
//	team 3 "Đà Nẵng"  led by 20 through leader_id only
//	director 1 has no team
type ResolverTestSuite struct {
	suite.Suite
	users []models.User
	teams []models.Team
	tasks []models.Task
}

func (s *ResolverTestSuite) SetupTest() {
	s.teams = []models.Team{
		{ID: 1, Name: "Hà Nội", LeaderID: ptr(10)},
		{ID: 2, Name: "Sài Gòn", LeaderID: ptr(20)},
		{ID: 3, Name: "Đà Nẵng", LeaderID: ptr(20)},
	}
	s.users = []models.User{
		{ID: 1, Name: "Director", Role: models.RoleRetailDirector, Status: models.UserStatusActive},
		{ID: 10, Name: "Leader One", Role: models.RoleTeamLeader, TeamID: ptr(1), Status: models.UserStatusActive},
		{ID: 11, Name: "Lê Khánh Duy", Role: models.RoleEmployee, TeamID: ptr(1), Status: models.UserStatusActive},
		{ID: 12, Name: "Employee Twelve", Role: models.RoleEmployee, TeamID: ptr(1), Status: models.UserStatusActive},
		{ID: 20, Name: "Leader Two", Role: models.RoleTeamLeader, TeamID: ptr(2), Status: models.UserStatusActive},
		{ID: 21, Name: "Employee TwentyOne", Role: models.RoleEmployee, TeamID: ptr(2), Status: models.UserStatusActive},
		{ID: 30, Name: "Employee Thirty", Role: models.RoleEmployee, TeamID: ptr(3), Status: models.UserStatusActive},
		{ID: 99, Name: "Gone", Role: models.RoleEmployee, TeamID: ptr(1), Status: models.UserStatusDeleted},
	}
	s.tasks = nil
}

func (s *ResolverTestSuite) addTask(id, creatorID uint64, visibility models.Visibility, age time.Duration) *models.Task {
	creator := s.user(creatorID)
	task := models.Task{
		ID:         id,
		Title:      fmt.Sprintf("T%d", id),
		UserID:     creatorID,
		UserName:   creator.Name,
		TeamID:     creator.TeamID,
		Visibility: visibility,
		CreatedAt:  base.Add(-age),
	}
	task.SyncShared()
	s.tasks = append(s.tasks, task)
	return &s.tasks[len(s.tasks)-1]
}

func (s *ResolverTestSuite) user(id uint64) *models.User {
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i]
		}
	}
	s.FailNow("unknown user", "%d", id)
	return nil
}

func (s *ResolverTestSuite) resolver(reconcile bool) *Resolver {
	return NewResolver(NewDirectory(s.users, s.teams), NewTaskStore(s.tasks), Options{ReconcileOnRead: reconcile})
}

func (s *ResolverTestSuite) resolve(r *Resolver, viewer uint64, mode Mode, params Params) Result {
	res, err := r.Resolve(viewer, mode, params)
	s.Require().NoError(err)
	return res
}

func ids(tasks []models.Task) []uint64 {
	out := make([]uint64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func (s *ResolverTestSuite) TestPersonal_IncludesOwnTasksRegardlessOfVisibility() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 11, models.VisibilityTeam, 2*time.Hour)
	s.addTask(3, 11, models.VisibilityShared, 3*time.Hour)
	s.addTask(4, 12, models.VisibilityPersonal, time.Hour)

	res := s.resolve(s.resolver(true), 11, ModePersonal, Params{})
	s.Equal([]uint64{1, 2, 3}, ids(res.Tasks))
	s.False(res.Denied)
}

func (s *ResolverTestSuite) TestPersonal_OrdersNewestFirstWithIDTieBreak() {
	s.addTask(1, 11, models.VisibilityPersonal, 2*time.Hour)
	s.addTask(2, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(3, 11, models.VisibilityPersonal, time.Hour)

	res := s.resolve(s.resolver(true), 11, ModePersonal, Params{})
	s.Equal([]uint64{3, 2, 1}, ids(res.Tasks))
}

func (s *ResolverTestSuite) TestConcreteScenario_LeKhanhDuy() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	r := s.resolver(true)

	s.Contains(ids(s.resolve(r, 11, ModePersonal, Params{}).Tasks), uint64(1))
	s.Contains(ids(s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(1)}).Tasks), uint64(1))
	s.NotContains(ids(s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(2)}).Tasks), uint64(1))
}

func (s *ResolverTestSuite) TestTeam_FollowsCreatorsCurrentTeam() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.user(11).TeamID = ptr(2)

	r := s.resolver(true)
	old := s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(1)})
	s.Empty(old.Tasks)
	s.Len(old.Drift, 1)
	s.Equal(uint64(1), old.Drift[0].TaskID)

	moved := s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(2)})
	s.Equal([]uint64{1}, ids(moved.Tasks))
	s.Len(moved.Drift, 1)
}

func (s *ResolverTestSuite) TestTeam_StrictModeExcludesDriftedTasks() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 12, models.VisibilityPersonal, time.Hour)
	s.user(11).TeamID = ptr(2)

	r := s.resolver(false)
	s.Equal([]uint64{2}, ids(s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(1)}).Tasks))
	res := s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(2)})
	s.Empty(res.Tasks)
	s.Len(res.Drift, 1)
}

func (s *ResolverTestSuite) TestTeam_MutuallyExclusiveAcrossTeams() {
	var next uint64 = 1
	for _, u := range []uint64{1, 10, 11, 12, 20, 21, 30} {
		s.addTask(next, u, models.VisibilityPersonal, time.Duration(next)*time.Minute)
		next++
	}
	s.user(12).TeamID = ptr(3)

	r := s.resolver(true)
	seen := map[uint64]uint64{}
	for _, team := range s.teams {
		res := s.resolve(r, 1, ModeTeam, Params{TeamID: ptr(team.ID)})
		for _, id := range ids(res.Tasks) {
			prev, dup := seen[id]
			s.False(dup, "task %d in team %d and %d", id, prev, team.ID)
			seen[id] = team.ID
		}
	}
	// Every task whose creator has a team lands in exactly one team view.
	s.Len(seen, 6)
	s.Equal(uint64(3), seen[4])
}

func (s *ResolverTestSuite) TestTeam_EmployeeOutOfScopeFailsClosed() {
	s.addTask(1, 21, models.VisibilityTeam, time.Hour)

	res := s.resolve(s.resolver(true), 11, ModeTeam, Params{TeamID: ptr(2)})
	s.True(res.Denied)
	s.Empty(res.Tasks)
	s.NotNil(res.Tasks)
}

func (s *ResolverTestSuite) TestTeam_EmployeeOwnTeamDefaultsFromViewer() {
	s.addTask(1, 12, models.VisibilityTeam, time.Hour)

	res := s.resolve(s.resolver(true), 11, ModeTeam, Params{})
	s.Equal([]uint64{1}, ids(res.Tasks))
}

func (s *ResolverTestSuite) TestTeam_LeaderSeesLedTeamsOnly() {
	s.addTask(1, 30, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 11, models.VisibilityPersonal, time.Hour)
	r := s.resolver(true)

	s.Equal([]uint64{1}, ids(s.resolve(r, 20, ModeTeam, Params{TeamID: ptr(3)}).Tasks))
	s.True(s.resolve(r, 20, ModeTeam, Params{TeamID: ptr(1)}).Denied)
}

func (s *ResolverTestSuite) TestTeam_UnknownTeamIsEmptyNotDenied() {
	res := s.resolve(s.resolver(true), 1, ModeTeam, Params{TeamID: ptr(404)})
	s.Empty(res.Tasks)
	s.False(res.Denied)
}

func (s *ResolverTestSuite) TestTeam_DirectorWithoutTeamNeedsSelection() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	res := s.resolve(s.resolver(true), 1, ModeTeam, Params{})
	s.Empty(res.Tasks)
}

func (s *ResolverTestSuite) TestTeam_UnknownCreatorExcluded() {
	s.tasks = append(s.tasks, models.Task{ID: 7, UserID: 404, TeamID: ptr(1), CreatedAt: base})
	res := s.resolve(s.resolver(true), 1, ModeTeam, Params{TeamID: ptr(1)})
	s.Empty(res.Tasks)
}

func (s *ResolverTestSuite) TestMember_DirectorSeesAllActiveMembers() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 21, models.VisibilityPersonal, 2*time.Hour)
	s.addTask(3, 30, models.VisibilityPersonal, 3*time.Hour)
	s.tasks = append(s.tasks, models.Task{ID: 4, UserID: 99, TeamID: ptr(1), CreatedAt: base})

	res := s.resolve(s.resolver(true), 1, ModeMember, Params{})
	s.Equal([]uint64{1, 2, 3}, ids(res.Tasks))
}

func (s *ResolverTestSuite) TestMember_LeaderScope() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 21, models.VisibilityPersonal, 2*time.Hour)
	s.addTask(3, 30, models.VisibilityPersonal, 3*time.Hour)
	s.addTask(4, 20, models.VisibilityPersonal, 4*time.Hour)
	r := s.resolver(true)

	s.Equal([]uint64{1}, ids(s.resolve(r, 10, ModeMember, Params{}).Tasks))
	s.Equal([]uint64{2, 3, 4}, ids(s.resolve(r, 20, ModeMember, Params{}).Tasks))
	s.Equal([]uint64{3}, ids(s.resolve(r, 20, ModeMember, Params{TeamID: ptr(3)}).Tasks))
	s.True(s.resolve(r, 20, ModeMember, Params{TeamID: ptr(1)}).Denied)
}

func (s *ResolverTestSuite) TestMember_NonEmptyWhenAnyManagedMemberHasTasks() {
	s.addTask(1, 12, models.VisibilityPersonal, time.Hour)
	s.NotEmpty(s.resolve(s.resolver(true), 10, ModeMember, Params{}).Tasks)
}

func (s *ResolverTestSuite) TestMember_SingleMember() {
	s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	s.addTask(2, 12, models.VisibilityPersonal, time.Hour)
	r := s.resolver(true)

	s.Equal([]uint64{2}, ids(s.resolve(r, 10, ModeMember, Params{MemberID: ptr(12)}).Tasks))
	s.True(s.resolve(r, 10, ModeMember, Params{MemberID: ptr(21)}).Denied)
	s.False(s.resolve(r, 10, ModeMember, Params{MemberID: ptr(404)}).Denied)
}

func (s *ResolverTestSuite) TestMember_EmployeeDenied() {
	s.addTask(1, 12, models.VisibilityPersonal, time.Hour)
	res := s.resolve(s.resolver(true), 11, ModeMember, Params{})
	s.True(res.Denied)
	s.Empty(res.Tasks)
}

func (s *ResolverTestSuite) TestShared() {
	s.addTask(1, 21, models.VisibilityShared, time.Hour)
	direct := s.addTask(2, 21, models.VisibilityPersonal, 2*time.Hour)
	direct.Shares = []models.TaskShare{{TaskID: 2, UserID: 11}}
	s.addTask(3, 21, models.VisibilityTeam, 3*time.Hour)
	r := s.resolver(true)

	s.Equal([]uint64{1, 2}, ids(s.resolve(r, 11, ModeShared, Params{}).Tasks))
	s.Equal([]uint64{1}, ids(s.resolve(r, 12, ModeShared, Params{}).Tasks))
}

func (s *ResolverTestSuite) TestUnknownViewerAborts() {
	r := s.resolver(true)
	_, err := r.Resolve(404, ModePersonal, Params{})
	s.ErrorIs(err, ErrUnknownViewer)

	_, err = r.Resolve(99, ModePersonal, Params{})
	s.ErrorIs(err, ErrUnknownViewer, "soft-deleted viewers are unknown")
}

func (s *ResolverTestSuite) TestInvalidMode() {
	_, err := s.resolver(true).Resolve(11, Mode("everything"), Params{})
	s.ErrorIs(err, ErrInvalidMode)
}

func (s *ResolverTestSuite) TestCanSee() {
	own := s.addTask(1, 11, models.VisibilityPersonal, time.Hour)
	other := s.addTask(2, 21, models.VisibilityPersonal, time.Hour)
	assigned := s.addTask(3, 21, models.VisibilityPersonal, time.Hour)
	assigned.AssignedTo = ptr(11)
	r := s.resolver(true)

	cases := []struct {
		viewer uint64
		task   models.Task
		want   bool
	}{
		{11, *own, true},
		{12, *own, true},
		{21, *own, false},
		{11, *other, false},
		{11, *assigned, true},
		{1, *other, true},
		{20, *other, true},
		{10, *other, false},
	}
	for _, tc := range cases {
		got, err := r.CanSee(tc.viewer, tc.task)
		s.Require().NoError(err)
		s.Equal(tc.want, got, "viewer %d task %d", tc.viewer, tc.task.ID)
	}
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"", "personal", "team", "member", "shared"} {
		if _, err := ParseMode(in); err != nil {
			t.Fatalf("ParseMode(%q) = %v", in, err)
		}
	}
	if _, err := ParseMode("all"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
