package repository

import (
	"context"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"gorm.io/gorm"
)

// AttachmentRepository 附件仓储
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建附件仓储
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create 创建附件记录
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	return translate(GetDB(ctx, r.db).Create(att).Error)
}

// ListByAppNumber 获取申请的全部附件
func (r *AttachmentRepository) ListByAppNumber(ctx context.Context, appNumber string) ([]entity.Attachment, error) {
	var atts []entity.Attachment
	err := GetDB(ctx, r.db).Where("app_number = ?", appNumber).Order("id ASC").Find(&atts).Error
	return atts, err
}

// FindByStoredFilename 根据存储文件名查找
func (r *AttachmentRepository) FindByStoredFilename(ctx context.Context, name string) (*entity.Attachment, error) {
	var att entity.Attachment
	if err := GetDB(ctx, r.db).Where("stored_filename = ?", name).First(&att).Error; err != nil {
		return nil, translate(err)
	}
	return &att, nil
}

// Delete 删除附件记录
func (r *AttachmentRepository) Delete(ctx context.Context, id uint) error {
	result := GetDB(ctx, r.db).Delete(&entity.Attachment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByAppNumber 删除申请下的全部附件记录
func (r *AttachmentRepository) DeleteByAppNumber(ctx context.Context, appNumber string) (int64, error) {
	result := GetDB(ctx, r.db).Where("app_number = ?", appNumber).Delete(&entity.Attachment{})
	return result.RowsAffected, result.Error
}
