package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/middleware"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/services"
)

// Services groups what the HTTP layer depends on.
type Services struct {
	Auth      *services.AuthService
	Tasks     *services.TaskService
	Directory *services.DirectoryService
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// RegisterRoutes mounts the API on r. Session middleware must already be
// installed.
func RegisterRoutes(r gin.IRouter, svc Services) {
	authHandler := NewAuthHandler(svc.Auth, svc.Logger)
	taskHandler := NewTaskHandler(svc.Tasks, svc.Logger)
	directoryHandler := NewDirectoryHandler(svc.Directory, svc.Logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Retail task API is running",
		})
	})
	if svc.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	gate := middleware.RequirePasswordGate(svc.Auth, svc.Logger)
	taskAccess := middleware.RequireTaskAccess(svc.Tasks, svc.Logger)

	api := r.Group("/api")
	{
		// Reachable while the password gate is closed
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
			auth.GET("/gate", middleware.RequireAuth(), authHandler.GetGate)
			auth.POST("/password", middleware.RequireAuth(), authHandler.ChangePassword)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth(), gate)
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/generate", taskHandler.GenerateTasks)
			tasks.GET("/:id", taskAccess, taskHandler.GetTask)
			tasks.PATCH("/:id", taskAccess, taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskAccess, taskHandler.DeleteTask)
			tasks.POST("/:id/assign", taskAccess, taskHandler.AssignTask)
			tasks.POST("/:id/share", taskAccess, taskHandler.ShareTask)
			tasks.POST("/:id/unshare", taskAccess, taskHandler.UnshareTask)
		}

		teams := api.Group("/teams")
		teams.Use(middleware.RequireAuth(), gate)
		{
			teams.GET("", directoryHandler.ListTeams)
			teams.GET("/:id/members", directoryHandler.GetTeamMembers)
		}

		users := api.Group("/users")
		users.Use(middleware.RequireAuth(), gate, middleware.RequireRole(models.RoleRetailDirector))
		{
			users.PUT("/:id/team", directoryHandler.AssignUserTeam)
		}
	}
}
