package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/yukikurage/retail-tasks/internal/dto"
	apierrors "github.com/yukikurage/retail-tasks/internal/errors"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/testutil"
)

// TaskHandlerTestSuite drives the task API through the full router.
type TaskHandlerTestSuite struct {
	suite.Suite
	env *testEnv

	team1    *models.Team
	team2    *models.Team
	director *models.User
	leader1  *models.User
	duy      *models.User
	peer     *models.User
	other    *models.User
}

func (suite *TaskHandlerTestSuite) SetupTest() {
	suite.env = setupTestEnv(suite.T())
	db := suite.env.db

	suite.team1 = testutil.CreateTeam(suite.T(), db, "Team 1", nil)
	suite.team2 = testutil.CreateTeam(suite.T(), db, "Team 2", nil)
	suite.director = suite.env.createUser("director", models.RoleRetailDirector, nil, nil)
	suite.leader1 = suite.env.createUser("leader1", models.RoleTeamLeader, &suite.team1.ID, nil)
	suite.duy = suite.env.createUser("duy", models.RoleEmployee, &suite.team1.ID, func(u *models.User) {
		u.Name = "Lê Khánh Duy"
	})
	suite.peer = suite.env.createUser("peer", models.RoleEmployee, &suite.team1.ID, nil)
	suite.other = suite.env.createUser("other", models.RoleEmployee, &suite.team2.ID, nil)

	suite.team1.LeaderID = &suite.leader1.ID
	suite.Require().NoError(db.Save(suite.team1).Error)
}

func (suite *TaskHandlerTestSuite) createTask(user *models.User, title string) dto.TaskDTO {
	w := suite.env.do(http.MethodPost, "/api/tasks", map[string]interface{}{
		"title":      title,
		"visibility": "personal",
	}, suite.env.login(user))
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.TaskDTO](suite.T(), w)
}

func (suite *TaskHandlerTestSuite) list(user *models.User, query string) dto.TaskListResponse {
	w := suite.env.do(http.MethodGet, "/api/tasks"+query, nil, suite.env.login(user))
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return decode[dto.TaskListResponse](suite.T(), w)
}

func taskTitles(tasks []dto.TaskDTO) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func (suite *TaskHandlerTestSuite) TestCreateTask() {
	task := suite.createTask(suite.duy, "T1")

	suite.Equal("T1", task.Title)
	suite.Equal(suite.duy.ID, task.UserID)
	suite.Equal("Lê Khánh Duy", task.UserName)
	suite.Equal(&suite.team1.ID, task.TeamID)
	suite.Equal(models.TaskStatusPending, task.Status)
	suite.Equal(uint64(1), task.Version)
	suite.NotNil(task.SharedWith)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Validation() {
	cookies := suite.env.login(suite.duy)

	w := suite.env.do(http.MethodPost, "/api/tasks", map[string]interface{}{
		"title":    "Visit store",
		"priority": "urgent",
	}, cookies)
	suite.Require().Equal(http.StatusUnprocessableEntity, w.Code)
	apiErr := decode[apierrors.APIError](suite.T(), w)
	suite.Equal(apierrors.ErrCodeValidationFailed, apiErr.Code)
	suite.Equal(map[string]interface{}{"field": "priority"}, apiErr.Details)

	w = suite.env.do(http.MethodPost, "/api/tasks", map[string]interface{}{"description": "no title"}, cookies)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListTasks_ConcreteScenario() {
	suite.createTask(suite.duy, "T1")

	suite.Contains(taskTitles(suite.list(suite.duy, "?view=personal").Tasks), "T1")
	suite.Contains(taskTitles(suite.list(suite.director, fmt.Sprintf("?view=team&team_id=%d", suite.team1.ID)).Tasks), "T1")
	suite.NotContains(taskTitles(suite.list(suite.director, fmt.Sprintf("?view=team&team_id=%d", suite.team2.ID)).Tasks), "T1")
}

func (suite *TaskHandlerTestSuite) TestListTasks_EmployeeOtherTeamFailsClosed() {
	suite.createTask(suite.other, "Team 2 task")

	resp := suite.list(suite.duy, fmt.Sprintf("?view=team&team_id=%d", suite.team2.ID))
	suite.True(resp.Denied)
	suite.NotNil(resp.Tasks)
	suite.Empty(resp.Tasks)
	suite.Zero(resp.TotalCount)
	suite.Equal("team", resp.View)
}

func (suite *TaskHandlerTestSuite) TestListTasks_MemberView() {
	suite.createTask(suite.duy, "Duy task")
	suite.createTask(suite.peer, "Peer task")
	suite.createTask(suite.other, "Other task")

	resp := suite.list(suite.leader1, "?view=member")
	suite.False(resp.Denied)
	suite.ElementsMatch([]string{"Duy task", "Peer task"}, taskTitles(resp.Tasks))

	resp = suite.list(suite.leader1, fmt.Sprintf("?view=member&member_id=%d", suite.duy.ID))
	suite.Equal([]string{"Duy task"}, taskTitles(resp.Tasks))

	resp = suite.list(suite.duy, "?view=member")
	suite.True(resp.Denied)
	suite.Empty(resp.Tasks)
}

func (suite *TaskHandlerTestSuite) TestListTasks_Pagination() {
	for i := 1; i <= 3; i++ {
		suite.createTask(suite.duy, fmt.Sprintf("Task %d", i))
	}

	resp := suite.list(suite.duy, "?page=1&limit=2")
	suite.Equal([]string{"Task 3", "Task 2"}, taskTitles(resp.Tasks))
	suite.Equal(int64(3), resp.TotalCount)
	suite.Equal(2, resp.TotalPages)

	far := suite.list(suite.duy, "?page=461168601842738792&limit=20")
	suite.Empty(far.Tasks)
	suite.Equal(int64(3), far.TotalCount)
}

func (suite *TaskHandlerTestSuite) TestListTasks_BadQuery() {
	cookies := suite.env.login(suite.duy)

	w := suite.env.do(http.MethodGet, "/api/tasks?view=everyone", nil, cookies)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.env.do(http.MethodGet, "/api/tasks?view=team&team_id=abc", nil, cookies)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestGetTask_HiddenOutsideScope() {
	task := suite.createTask(suite.duy, "T1")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := suite.env.do(http.MethodGet, path, nil, suite.env.login(suite.leader1))
	suite.Equal(http.StatusOK, w.Code)

	w = suite.env.do(http.MethodGet, path, nil, suite.env.login(suite.other))
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.env.do(http.MethodGet, "/api/tasks/abc", nil, suite.env.login(suite.duy))
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_VersionConflict() {
	task := suite.createTask(suite.duy, "draft")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)
	cookies := suite.env.login(suite.duy)

	w := suite.env.do(http.MethodPatch, path, map[string]interface{}{
		"version": task.Version,
		"status":  "in_progress",
	}, cookies)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.TaskDTO](suite.T(), w)
	suite.Equal(models.TaskStatusInProgress, updated.Status)
	suite.Equal(task.Version+1, updated.Version)

	w = suite.env.do(http.MethodPatch, path, map[string]interface{}{
		"version": task.Version,
		"title":   "stale edit",
	}, cookies)
	suite.Require().Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeVersionConflict, decode[apierrors.APIError](suite.T(), w).Code)

	w = suite.env.do(http.MethodPatch, path, map[string]interface{}{"title": "no version"}, cookies)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_NonOwnerForbidden() {
	task := suite.createTask(suite.duy, "draft")

	w := suite.env.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), map[string]interface{}{
		"version": task.Version,
		"title":   "hijack",
	}, suite.env.login(suite.leader1))
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestAssignTask() {
	task := suite.createTask(suite.duy, "draft")

	w := suite.env.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/assign", task.ID), map[string]interface{}{
		"version":     task.Version,
		"assignee_id": suite.peer.ID,
	}, suite.env.login(suite.leader1))
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(&suite.peer.ID, decode[dto.TaskDTO](suite.T(), w).AssignedTo)
}

func (suite *TaskHandlerTestSuite) TestShareTask() {
	task := suite.createTask(suite.duy, "draft")
	owner := suite.env.login(suite.duy)

	suite.Empty(suite.list(suite.other, "?view=shared").Tasks)

	w := suite.env.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/share", task.ID), map[string]interface{}{
		"user_ids": []uint64{suite.other.ID},
	}, owner)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	shared := decode[dto.TaskDTO](suite.T(), w)
	suite.True(shared.IsShared)
	suite.Equal([]uint64{suite.other.ID}, shared.SharedWith)

	suite.Equal([]string{"draft"}, taskTitles(suite.list(suite.other, "?view=shared").Tasks))

	w = suite.env.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/share", task.ID), map[string]interface{}{
		"user_ids": []uint64{},
	}, owner)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.env.do(http.MethodPost, fmt.Sprintf("/api/tasks/%d/unshare", task.ID), map[string]interface{}{
		"user_ids": []uint64{suite.other.ID},
	}, owner)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.False(decode[dto.TaskDTO](suite.T(), w).IsShared)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	task := suite.createTask(suite.duy, "draft")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := suite.env.do(http.MethodDelete, path, nil, suite.env.login(suite.peer))
	suite.Equal(http.StatusForbidden, w.Code)

	owner := suite.env.login(suite.duy)
	w = suite.env.do(http.MethodDelete, path, nil, owner)
	suite.Equal(http.StatusNoContent, w.Code)

	w = suite.env.do(http.MethodGet, path, nil, owner)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestGenerateTasks_NotConfigured() {
	w := suite.env.do(http.MethodPost, "/api/tasks/generate", map[string]string{
		"text": "Prepare the weekly sales report by Friday",
	}, suite.env.login(suite.duy))
	suite.Equal(http.StatusServiceUnavailable, w.Code)
}

func (suite *TaskHandlerTestSuite) TestMetricsEndpoint() {
	suite.list(suite.duy, "?view=personal")

	w := suite.env.do(http.MethodGet, "/metrics", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.True(strings.Contains(w.Body.String(), `retailtasks_visibility_resolutions_total{mode="personal",outcome="ok"} 1`))
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
