package database

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yukikurage/retail-tasks/internal/config"
	"github.com/yukikurage/retail-tasks/internal/models"
	"github.com/yukikurage/retail-tasks/internal/repository"
	"github.com/yukikurage/retail-tasks/internal/utils"
)

// SeedDefaultAdmin creates a retail director when the users table is empty
// and returns it with its generated password. The password is never logged;
// the caller shows it once and it must be changed at first login. Both
// results are zero when users already exist.
func SeedDefaultAdmin(db *gorm.DB, cfg config.AdminConfig, log *zap.Logger) (*models.User, string, error) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, "", fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, "", nil
	}

	password, err := utils.GenerateTempPassword()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		Role:         models.RoleRetailDirector,
		Status:       models.UserStatusActive,
	}
	if err := repository.NewUserRepository(db).Create(admin); err != nil {
		return nil, "", fmt.Errorf("failed to create admin: %w", err)
	}

	log.Warn("default admin created", zap.String("email", admin.Email), zap.Uint64("user_id", admin.ID))
	return admin, password, nil
}
