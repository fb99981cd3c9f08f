// Package passwordgate decides whether a signed-in user must change their
// password before reaching the rest of the app.
package passwordgate

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/yukikurage/retail-tasks/internal/constants"
	"github.com/yukikurage/retail-tasks/internal/models"
)

type State string

const (
	StateNormal                  State = "NORMAL"
	StateFirstLoginPendingChange State = "FIRST_LOGIN_PENDING_CHANGE"
	StateForcedChangeRequired    State = "FORCED_CHANGE_REQUIRED"
	StateBlocked                 State = "BLOCKED"
)

// AllowsAccess reports whether protected routes are reachable in s.
func (s State) AllowsAccess() bool {
	return s == StateNormal
}

// RequiresChange reports whether the change-password form should be shown.
func (s State) RequiresChange() bool {
	return s == StateFirstLoginPendingChange || s == StateForcedChangeRequired
}

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	ErrGateBlocked      = errors.New("account access is blocked")
	ErrHashFailed       = errors.New("failed to hash password")
)

// CredentialStore persists a new password hash. Implementations must also
// mark the user's password as changed, clear any forced-change flag and the
// legacy temp password, in one write.
type CredentialStore interface {
	SetPassword(userID uint64, passwordHash string) error
}

// Derive computes the gate state for a stored user.
func Derive(user models.User) State {
	switch {
	case !user.IsActive() || user.BlockAppAccess:
		return StateBlocked
	case user.RequirePasswordChange:
		return StateForcedChangeRequired
	case !user.PasswordChanged:
		return StateFirstLoginPendingChange
	default:
		return StateNormal
	}
}

// ValidateNewPassword checks length and confirmation. Length counts runes.
func ValidateNewPassword(newPassword, confirmPassword string) error {
	if len([]rune(newPassword)) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// Gate is the per-session state machine for one user.
type Gate struct {
	user  models.User
	state State
	store CredentialStore
	cost  int
}

type Option func(*Gate)

// WithCost sets the bcrypt cost used for new hashes.
func WithCost(cost int) Option {
	return func(g *Gate) { g.cost = cost }
}

// Restore rebuilds the gate from the stored user, as on a page reload.
func Restore(user models.User, store CredentialStore, opts ...Option) *Gate {
	g := &Gate{
		user:  user,
		state: Derive(user),
		store: store,
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) State() State {
	return g.state
}

// User returns the user as the gate currently knows it.
func (g *Gate) User() models.User {
	return g.user
}

// SubmitNewPassword validates and persists a new password. On any error the
// state is unchanged.
func (g *Gate) SubmitNewPassword(newPassword, confirmPassword string) error {
	if g.state == StateBlocked {
		return ErrGateBlocked
	}
	if err := ValidateNewPassword(newPassword, confirmPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), g.cost)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashFailed, err)
	}

	if err := g.store.SetPassword(g.user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to persist password: %w", err)
	}

	g.user.PasswordHash = string(hash)
	g.user.PasswordChanged = true
	g.user.RequirePasswordChange = false
	g.user.TempPassword = ""
	g.state = StateNormal
	return nil
}
