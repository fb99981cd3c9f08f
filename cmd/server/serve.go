package main

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yukikurage/retail-tasks/internal/constants"
	"github.com/yukikurage/retail-tasks/internal/database"
	"github.com/yukikurage/retail-tasks/internal/handlers"
	"github.com/yukikurage/retail-tasks/internal/logging"
	"github.com/yukikurage/retail-tasks/internal/metrics"
	"github.com/yukikurage/retail-tasks/internal/repository"
	"github.com/yukikurage/retail-tasks/internal/services"
	"github.com/yukikurage/retail-tasks/internal/visibility"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run migrations, seed the default administrator when the users table
is empty, and serve the HTTP API.

Examples:
  retailtasks serve
  retailtasks serve --config /etc/retailtasks/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.Gin.Mode)

	if err := database.Migrate(logger); err != nil {
		return err
	}
	db := database.GetDB()

	admin, password, err := database.SeedDefaultAdmin(db, cfg.Admin, logger)
	if err != nil {
		return err
	}
	if admin != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Default admin %s created with temporary password: %s\nChange it at first login.\n", admin.Email, password)
	}

	store, err := redisStore.NewStore(
		10, // pool size
		"tcp",
		cfg.Redis.Addr(),
		"", // username
		"", // password
		[]byte(cfg.Session.Secret),
	)
	if err != nil {
		return fmt.Errorf("failed to create redis store: %w", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	userRepo := repository.NewUserRepository(db)
	directory := services.NewDirectoryService(userRepo, repository.NewTeamRepository(db), cfg.Directory.CacheTTL, logger)

	// A typed nil *AIService would make the interface non-nil.
	var drafter services.TaskDrafter
	if ai := services.NewAIService(cfg.OpenAI.APIKey); ai != nil {
		drafter = ai
	} else {
		logger.Info("task drafting disabled: no openai api key configured")
	}

	taskService := services.NewTaskService(
		repository.NewTaskRepository(db),
		directory,
		drafter,
		m,
		logger,
		visibility.Options{ReconcileOnRead: cfg.Visibility.ReconcileOnRead},
	)

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(logger))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	handlers.RegisterRoutes(r, handlers.Services{
		Auth:      services.NewAuthService(userRepo, m, logger),
		Tasks:     taskService,
		Directory: directory,
		Gatherer:  registry,
		Logger:    logger,
	})

	logger.Info("server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Bool("reconcile_on_read", cfg.Visibility.ReconcileOnRead),
		zap.Duration("directory_cache_ttl", cfg.Directory.CacheTTL),
	)
	if err := r.Run(cfg.Server.Addr); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
