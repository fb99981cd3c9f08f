package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/repository"
	"github.com/yukikurage/retail-tasks/internal/visibility"
)

var (
	ErrTeamNotFound          = errors.New("team not found")
	ErrDirectoryAccessDenied = errors.New("viewer cannot access this part of the directory")
	ErrUserVersionConflict   = errors.New("user was modified by someone else")
)

// DirectoryService serves users and teams from a cached snapshot. The cache
// expires after the configured TTL and is dropped on every directory write.
type DirectoryService struct {
	userRepo repository.UserRepository
	teamRepo repository.TeamRepository
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.RWMutex
	snapshot   *visibility.MemoryDirectory
	loadedAt   time.Time
	generation uint64
	group      singleflight.Group
}

// NewDirectoryService creates a DirectoryService. A zero ttl disables caching.
func NewDirectoryService(userRepo repository.UserRepository, teamRepo repository.TeamRepository, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		userRepo: userRepo,
		teamRepo: teamRepo,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Snapshot returns a directory snapshot no older than the TTL.
func (s *DirectoryService) Snapshot() (*visibility.MemoryDirectory, error) {
	s.mu.RLock()
	snap, loadedAt, gen := s.snapshot, s.loadedAt, s.generation
	s.mu.RUnlock()

	if snap != nil && s.now().Sub(loadedAt) < s.ttl {
		return snap, nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("directory-%d", gen), func() (interface{}, error) {
		return s.load(gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*visibility.MemoryDirectory), nil
}

func (s *DirectoryService) load(gen uint64) (*visibility.MemoryDirectory, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	teams, err := s.teamRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	snap := visibility.NewDirectory(users, teams)

	s.mu.Lock()
	// A write that happened while loading invalidates this snapshot.
	if s.generation == gen {
		s.snapshot = snap
		s.loadedAt = s.now()
	}
	s.mu.Unlock()

	s.logger.Debug("directory snapshot loaded", zap.Int("users", len(users)), zap.Int("teams", len(teams)))
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (s *DirectoryService) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.generation++
	s.mu.Unlock()
}

// ListTeams returns every team.
func (s *DirectoryService) ListTeams() ([]models.Team, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Teams(), nil
}

// TeamMembers returns the active members of teamID if the viewer may see
// that team.
func (s *DirectoryService) TeamMembers(viewerID, teamID uint64) (*models.Team, []models.User, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, nil, err
	}

	viewer, err := snap.GetUser(viewerID)
	if err != nil || !viewer.IsActive() {
		return nil, nil, ErrUserNotFound
	}
	team, err := snap.GetTeam(teamID)
	if err != nil {
		return nil, nil, ErrTeamNotFound
	}
	if !visibility.CanViewTeam(snap, viewer, teamID) {
		return nil, nil, ErrDirectoryAccessDenied
	}
	return &team, snap.GetTeamMembers(teamID), nil
}

// AssignUserTeamInput moves a user to another team.
type AssignUserTeamInput struct {
	ActorID         uint64
	UserID          uint64
	TeamID          *uint64
	ExpectedVersion uint64
}

// AssignUserTeam moves a user between teams. Only directors may do it.
// Tasks the user already created keep their stored team; reads attribute
// them by the user's new team and the reconcile command rewrites them.
func (s *DirectoryService) AssignUserTeam(input AssignUserTeamInput) (*models.User, error) {
	actor, err := s.userRepo.FindByID(input.ActorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find actor: %w", err)
	}
	if !actor.IsDirector() || !actor.IsActive() {
		return nil, ErrDirectoryAccessDenied
	}

	if input.TeamID != nil {
		if _, err := s.teamRepo.FindByID(*input.TeamID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTeamNotFound
			}
			return nil, fmt.Errorf("failed to find team: %w", err)
		}
	}

	if err := s.userRepo.UpdateTeam(input.UserID, input.TeamID, input.ExpectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			if _, findErr := s.userRepo.FindByID(input.UserID); errors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, ErrUserVersionConflict
		}
		return nil, fmt.Errorf("failed to update user team: %w", err)
	}
	s.Invalidate()

	user, err := s.userRepo.FindByID(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	s.logger.Info("user team changed",
		zap.Uint64("actor_id", actor.ID),
		zap.Uint64("user_id", user.ID),
		zap.Any("team_id", user.TeamID))
	return user, nil
}
