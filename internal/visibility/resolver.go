// Package visibility decides which tasks a viewer may see.
//
// Resolution is pure: it reads a Directory and a TaskStore snapshot and never
// writes. Lookups of unknown users or teams exclude data rather than fail;
// only an unknown viewer aborts.
package visibility

import (
	"errors"
	"fmt"
	"slices"

	"github.com/yukikurage/retail-tasks/internal/models"
)

var (
	ErrUnknownViewer = errors.New("visibility: unknown viewer")
	ErrInvalidMode   = errors.New("visibility: invalid view mode")
)

type Mode string

const (
	ModePersonal Mode = "personal"
	ModeTeam     Mode = "team"
	ModeMember   Mode = "member"
	ModeShared   Mode = "shared"
)

// ParseMode maps a query value to a Mode. An empty value means personal.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModePersonal, nil
	case ModePersonal, ModeTeam, ModeMember, ModeShared:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

type Options struct {
	// ReconcileOnRead attributes a task to its creator's current team even
	// when the team stored on the task is stale.
	ReconcileOnRead bool
}

// Params narrows team and member views.
type Params struct {
	TeamID   *uint64
	MemberID *uint64
}

// Drift records a task whose stored team differs from its creator's team.
type Drift struct {
	TaskID        uint64
	CreatorID     uint64
	StoredTeamID  *uint64
	CurrentTeamID *uint64
}

type Result struct {
	Tasks []models.Task
	// Denied is set when the request was outside the viewer's scope. Tasks is
	// then empty.
	Denied bool
	Drift  []Drift
}

type Resolver struct {
	dir   Directory
	store TaskStore
	opts  Options
}

func NewResolver(dir Directory, store TaskStore, opts Options) *Resolver {
	return &Resolver{dir: dir, store: store, opts: opts}
}

// Resolve returns the tasks viewerID may see in mode, newest first.
func (r *Resolver) Resolve(viewerID uint64, mode Mode, params Params) (Result, error) {
	viewer, err := r.viewer(viewerID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	switch mode {
	case ModePersonal:
		res = r.personal(viewer)
	case ModeTeam:
		res = r.team(viewer, params)
	case ModeMember:
		res = r.member(viewer, params)
	case ModeShared:
		res = r.shared(viewer)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	sortNewestFirst(res.Tasks)
	return res, nil
}

// CanSee reports whether task would appear in any of viewerID's views, or is
// assigned to them.
func (r *Resolver) CanSee(viewerID uint64, task models.Task) (bool, error) {
	viewer, err := r.viewer(viewerID)
	if err != nil {
		return false, err
	}

	if task.UserID == viewer.ID || task.IsAssignedTo(viewer.ID) || isSharedWith(&task, viewer.ID) {
		return true, nil
	}

	creator, err := r.dir.GetUser(task.UserID)
	if err != nil || creator.TeamID == nil {
		return false, nil
	}
	if !r.opts.ReconcileOnRead && !sameTeam(task.TeamID, creator.TeamID) {
		return false, nil
	}
	return CanViewTeam(r.dir, viewer, *creator.TeamID), nil
}

func (r *Resolver) viewer(id uint64) (models.User, error) {
	viewer, err := r.dir.GetUser(id)
	if err != nil || !viewer.IsActive() {
		return models.User{}, fmt.Errorf("%w: %d", ErrUnknownViewer, id)
	}
	return viewer, nil
}

func (r *Resolver) personal(viewer models.User) Result {
	return Result{
		Tasks: r.store.TasksWhere(func(t *models.Task) bool {
			return t.UserID == viewer.ID
		}),
	}
}

func (r *Resolver) team(viewer models.User, params Params) Result {
	teamID := params.TeamID
	if teamID == nil {
		teamID = viewer.TeamID
	}
	if teamID == nil {
		return emptyResult()
	}
	if _, err := r.dir.GetTeam(*teamID); err != nil {
		return emptyResult()
	}
	if !CanViewTeam(r.dir, viewer, *teamID) {
		return deniedResult()
	}

	target := *teamID
	var drift []Drift
	tasks := r.store.TasksWhere(func(t *models.Task) bool {
		creator, err := r.dir.GetUser(t.UserID)
		if err != nil {
			return false
		}

		stored := t.TeamID != nil && *t.TeamID == target
		current := creator.InTeam(target)
		if !stored && !current {
			return false
		}
		if !sameTeam(t.TeamID, creator.TeamID) {
			drift = append(drift, Drift{
				TaskID:        t.ID,
				CreatorID:     creator.ID,
				StoredTeamID:  t.TeamID,
				CurrentTeamID: creator.TeamID,
			})
			if !r.opts.ReconcileOnRead {
				return false
			}
		}
		return current
	})

	return Result{Tasks: tasks, Drift: drift}
}

func (r *Resolver) member(viewer models.User, params Params) Result {
	if !CanViewMembers(viewer) {
		return deniedResult()
	}

	var members []models.User
	switch {
	case params.TeamID != nil:
		if _, err := r.dir.GetTeam(*params.TeamID); err != nil {
			return emptyResult()
		}
		if !CanViewTeam(r.dir, viewer, *params.TeamID) {
			return deniedResult()
		}
		members = r.dir.GetTeamMembers(*params.TeamID)
	case viewer.IsDirector():
		members = r.dir.ActiveUsers()
	default:
		scope := scopeFor(r.dir, viewer)
		for teamID := range scope.teams {
			members = append(members, r.dir.GetTeamMembers(teamID)...)
		}
	}

	creators := make(map[uint64]struct{}, len(members))
	for _, m := range members {
		creators[m.ID] = struct{}{}
	}

	if params.MemberID != nil {
		member, err := r.dir.GetUser(*params.MemberID)
		if err != nil || !member.IsActive() {
			return emptyResult()
		}
		if _, ok := creators[member.ID]; !ok {
			return deniedResult()
		}
		creators = map[uint64]struct{}{member.ID: {}}
	}

	return Result{
		Tasks: r.store.TasksWhere(func(t *models.Task) bool {
			_, ok := creators[t.UserID]
			return ok
		}),
	}
}

func (r *Resolver) shared(viewer models.User) Result {
	return Result{
		Tasks: r.store.TasksWhere(func(t *models.Task) bool {
			return isSharedWith(t, viewer.ID)
		}),
	}
}

func isSharedWith(t *models.Task, userID uint64) bool {
	return t.Visibility == models.VisibilityShared || t.IsSharedWith(userID)
}

func sameTeam(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func emptyResult() Result {
	return Result{Tasks: []models.Task{}}
}

func deniedResult() Result {
	return Result{Tasks: []models.Task{}, Denied: true}
}

func sortNewestFirst(tasks []models.Task) {
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
