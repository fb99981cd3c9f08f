package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yukikurage/retail-tasks/internal/models"
)

func TestCanViewMembers_ByRole(t *testing.T) {
	tests := []struct {
		role models.Role
		want bool
	}{
		{models.RoleRetailDirector, true},
		{models.RoleTeamLeader, true},
		{models.RoleEmployee, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, CanViewMembers(models.User{Role: tt.role}))
		})
	}
}

func TestCanManageMember_LeaderScope(t *testing.T) {
	dir := NewDirectory(
		[]models.User{
			{ID: 10, Role: models.RoleTeamLeader, TeamID: ptr(1), Status: models.UserStatusActive},
			{ID: 11, Role: models.RoleEmployee, TeamID: ptr(1), Status: models.UserStatusActive},
			{ID: 21, Role: models.RoleEmployee, TeamID: ptr(2), Status: models.UserStatusActive},
		},
		[]models.Team{{ID: 1, LeaderID: ptr(10)}, {ID: 2}},
	)
	leader, _ := dir.GetUser(10)
	own, _ := dir.GetUser(11)
	other, _ := dir.GetUser(21)

	assert.True(t, CanManageMember(dir, leader, own))
	assert.False(t, CanManageMember(dir, leader, other))
	assert.False(t, CanManageMember(dir, own, own))
}
