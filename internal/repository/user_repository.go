package repository

import (
	"strings"

	"github.com/yukikurage/retail-tasks/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds the oldest active user with the email
func (r *GormUserRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.
		Where("LOWER(email) = ? AND status = ?", strings.ToLower(strings.TrimSpace(email)), models.UserStatusActive).
		Order("id ASC").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every user ordered by ID
func (r *GormUserRepository) List() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetPassword stores a new hash, marks the password as changed and clears
// the forced-change flag and legacy temp password
func (r *GormUserRepository) SetPassword(userID uint64, passwordHash string) error {
	res := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password_hash":           passwordHash,
			"password_changed":        true,
			"require_password_change": false,
			"temp_password":           "",
			"version":                 gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateTeam moves a user to another team (nil removes the team)
func (r *GormUserRepository) UpdateTeam(userID uint64, teamID *uint64, expectedVersion uint64) error {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND version = ?", userID, expectedVersion).
		Updates(map[string]interface{}{
			"team_id": teamID,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
