package dto

import (
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/passwordgate"
)

// GateDTO describes the password gate for the signed-in user
type GateDTO struct {
	State          passwordgate.State `json:"state"`
	RequiresChange bool               `json:"requires_change"`
	AllowsAccess   bool               `json:"allows_access"`
}

// SessionResponse is returned by login and me
type SessionResponse struct {
	User UserDTO `json:"user"`
	Gate GateDTO `json:"gate"`
}

// ToGateDTO converts a gate state
func ToGateDTO(state passwordgate.State) GateDTO {
	return GateDTO{
		State:          state,
		RequiresChange: state.RequiresChange(),
		AllowsAccess:   state.AllowsAccess(),
	}
}

// ToSessionResponse converts a user and its gate state
func ToSessionResponse(user models.User, state passwordgate.State) SessionResponse {
	return SessionResponse{
		User: ToUserDTO(user),
		Gate: ToGateDTO(state),
	}
}
