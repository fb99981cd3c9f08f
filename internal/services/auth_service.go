package services

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/metrics"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/passwordgate"
	"github.com/yukikurage/retail-tasks/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountBlocked     = errors.New("account access is blocked")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo repository.UserRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cost     int
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, m *metrics.Metrics, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		metrics:  m,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

// WithHashCost returns the service using cost for new password hashes.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and returns the authenticated user with the
// gate state it starts in. Blocked accounts cannot log in.
func (s *AuthService) Login(input LoginInput) (*models.User, passwordgate.State, error) {
	user, err := s.userRepo.FindByEmail(input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if !checkPassword(user, input.Password) {
		return nil, "", ErrInvalidCredentials
	}

	state := passwordgate.Derive(*user)
	if state == passwordgate.StateBlocked {
		s.logger.Warn("blocked account attempted login", zap.Uint64("user_id", user.ID))
		return nil, state, ErrAccountBlocked
	}

	return user, state, nil
}

// checkPassword accepts the bcrypt hash, or the legacy temp password when the
// user has never set one.
func checkPassword(user *models.User, password string) bool {
	if user.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	}
	if user.TempPassword == "" || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.TempPassword), []byte(password)) == 1
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Gate restores the password gate for a user from its stored flags.
func (s *AuthService) Gate(userID uint64) (*passwordgate.Gate, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	return passwordgate.Restore(*user, s.userRepo, passwordgate.WithCost(s.cost)), nil
}

// ChangePassword submits a new password through the user's gate and returns
// the resulting state.
func (s *AuthService) ChangePassword(userID uint64, newPassword, confirmPassword string) (passwordgate.State, error) {
	gate, err := s.Gate(userID)
	if err != nil {
		return "", err
	}
	before := gate.State()

	if err := gate.SubmitNewPassword(newPassword, confirmPassword); err != nil {
		switch {
		case errors.Is(err, passwordgate.ErrPasswordTooShort), errors.Is(err, passwordgate.ErrPasswordMismatch):
			s.metrics.ObservePasswordChange("invalid")
		case errors.Is(err, passwordgate.ErrGateBlocked):
			s.metrics.ObservePasswordChange("blocked")
		default:
			s.metrics.ObservePasswordChange("error")
			s.logger.Error("failed to change password", zap.Uint64("user_id", userID), zap.Error(err))
		}
		return gate.State(), err
	}

	s.metrics.ObservePasswordChange("ok")
	s.logger.Info("password changed",
		zap.Uint64("user_id", userID),
		zap.String("from_state", string(before)))
	return gate.State(), nil
}
