package middleware

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/constants"
	apierrors "github.com/yukikurage/retail-tasks/internal/errors"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/passwordgate"
	"github.com/yukikurage/retail-tasks/internal/services"
)

// RequireAuth checks if the user is authenticated via session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(constants.ContextKeyUserID)

		if userID == nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		// Store user ID in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// RequirePasswordGate lets the request through only when the user's password
// gate is open. The gate is restored from the stored user on every request,
// so a password change in another tab takes effect on the next call.
func RequirePasswordGate(authService *services.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		gate, err := authService.Gate(userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				sessions.Default(c).Clear()
				_ = sessions.Default(c).Save()
				apierrors.Unauthorized(c, "")
				c.Abort()
				return
			}
			logger.Error("failed to restore password gate", zap.Uint64("user_id", userID), zap.Error(err))
			apierrors.InternalError(c, "")
			c.Abort()
			return
		}

		switch state := gate.State(); {
		case state == passwordgate.StateBlocked:
			apierrors.AccountBlocked(c)
			return
		case !state.AllowsAccess():
			apierrors.PasswordChangeRequired(c, string(state))
			return
		}

		c.Set(constants.ContextKeyUser, gate.User())
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// GetCurrentUser retrieves the user loaded by RequirePasswordGate
func GetCurrentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
