package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/dto"
	apierrors "github.com/yukikurage/retail-tasks/internal/errors"
	"github.com/yukikurage/retail-tasks/internal/logging"
	"github.com/yukikurage/retail-tasks/internal/middleware"
	"github.com/yukikurage/retail-tasks/internal/services"
)

// DirectoryHandler serves teams and team membership.
type DirectoryHandler struct {
	directoryService *services.DirectoryService
	logger           *zap.Logger
}

func NewDirectoryHandler(directoryService *services.DirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directoryService: directoryService,
		logger:           logger,
	}
}

// ListTeams returns every team
func (h *DirectoryHandler) ListTeams(c *gin.Context) {
	teams, err := h.directoryService.ListTeams()
	if err != nil {
		h.respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"teams": dto.ToTeamDTOs(teams)})
}

// GetTeamMembers returns the active members of a team in the user's scope
func (h *DirectoryHandler) GetTeamMembers(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	teamID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid team ID")
		return
	}

	team, members, err := h.directoryService.TeamMembers(userID, teamID)
	if err != nil {
		h.respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamMembersResponse(*team, members))
}

// AssignUserTeam moves a user to another team
func (h *DirectoryHandler) AssignUserTeam(c *gin.Context) {
	type AssignUserTeamRequest struct {
		TeamID  *uint64 `json:"team_id"`
		Version uint64  `json:"version" binding:"required"`
	}

	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	var req AssignUserTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.directoryService.AssignUserTeam(services.AssignUserTeamInput{
		ActorID:         actorID,
		UserID:          userID,
		TeamID:          req.TeamID,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.respondDirectoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func (h *DirectoryHandler) respondDirectoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTeamNotFound):
		apierrors.NotFound(c, "Team not found")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrDirectoryAccessDenied):
		apierrors.AccessDenied(c, "")
	case errors.Is(err, services.ErrUserVersionConflict):
		apierrors.VersionConflict(c, err.Error())
	default:
		logging.FromContext(c, h.logger).Error("directory request failed", zap.Error(err))
		apierrors.InternalError(c, "Internal server error")
	}
}
