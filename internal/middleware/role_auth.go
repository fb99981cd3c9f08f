package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apierrors "github.com/yukikurage/retail-tasks/internal/errors"
	"github.com/yukikurage/retail-tasks/internal/models"
)

// RequireRole checks that the current user has one of roles. It must run
// after RequirePasswordGate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			apierrors.AbortWithError(c, http.StatusInternalServerError,
				apierrors.NewAPIError(apierrors.ErrCodeInternalError, "Current user not loaded"))
			return
		}

		if !slices.Contains(roles, user.Role) {
			apierrors.Forbidden(c, "Your role cannot perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}
