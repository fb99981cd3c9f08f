package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/retail-tasks/internal/config"
	"github.com/yukikurage/retail-tasks/internal/models"
)

var DB *gorm.DB

// Models lists every table managed by AutoMigrate.
var Models = []interface{}{
	&models.Team{},
	&models.User{},
	&models.Task{},
	&models.TaskShare{},
}

func Connect(cfg *config.Config, log *zap.Logger) error {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DB.DSN())
	default:
		dialector = mysql.Open(cfg.DB.DSN())
	}

	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established", zap.String("driver", cfg.DB.Driver))
	return nil
}

func Migrate(log *zap.Logger) error {
	log.Info("running database migrations")
	if err := MigrateDatabase(DB); err != nil {
		return err
	}
	log.Info("database migrations completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (used for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
