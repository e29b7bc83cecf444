package repository

import (
	"context"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminRepository 管理员仓储
type AdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository 创建管理员仓储
func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByUsername 根据用户名查找
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*entity.Admin, error) {
	var admin entity.Admin
	if err := GetDB(ctx, r.db).Where("username = ?", username).First(&admin).Error; err != nil {
		return nil, translate(err)
	}
	return &admin, nil
}

// CreateIfNotExists inserts the admin unless the username is already present.
// It reports whether a row was written.
func (r *AdminRepository) CreateIfNotExists(ctx context.Context, admin *entity.Admin) (bool, error) {
	result := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(admin)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}
