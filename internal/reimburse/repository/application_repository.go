package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"gorm.io/gorm"
)

// ApplicationRepository 报销申请仓储
type ApplicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository 创建报销申请仓储
func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create 创建申请，invoice_number 或 app_number 重复时返回 ErrDuplicate
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	return translate(GetDB(ctx, r.db).Omit("Attachments").Create(app).Error)
}

// FindByAppNumber 根据申请编号查找，附件一并加载
func (r *ApplicationRepository) FindByAppNumber(ctx context.Context, appNumber string) (*entity.Application, error) {
	var app entity.Application
	err := GetDB(ctx, r.db).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("app_number = ?", appNumber).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

// FindByInvoiceNumber 根据发票号码查找，附件一并加载
func (r *ApplicationRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Application, error) {
	var app entity.Application
	err := GetDB(ctx, r.db).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("invoice_number = ?", invoiceNumber).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

// InvoiceNumberTaken reports whether another application already uses the invoice
// number. excludeAppNumber lets an edit keep its own number.
func (r *ApplicationRepository) InvoiceNumberTaken(ctx context.Context, invoiceNumber, excludeAppNumber string) (bool, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&entity.Application{}).Where("invoice_number = ?", invoiceNumber)
	if excludeAppNumber != "" {
		query = query.Where("app_number <> ?", excludeAppNumber)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update 覆盖申请的全部可编辑字段，updated_at 取调用方给定的值
func (r *ApplicationRepository) Update(ctx context.Context, app *entity.Application) error {
	result := GetDB(ctx, r.db).
		Model(&entity.Application{}).
		Where("app_number = ?", app.AppNumber).
		Updates(map[string]interface{}{
			"purchaser":        app.Purchaser,
			"purchase_details": app.PurchaseDetails,
			"item_name":        app.ItemName,
			"product_link":     app.ProductLink,
			"usage_type":       app.UsageType,
			"item_type":        app.ItemType,
			"quantity":         app.Quantity,
			"purchase_time":    app.PurchaseTime,
			"invoice_number":   app.InvoiceNumber,
			"invoice_amount":   app.InvoiceAmount,
			"invoice_date":     app.InvoiceDate,
			"updated_at":       app.UpdatedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus 更新审批状态与审批意见
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, appNumber string, status entity.Status, comment string, updatedAt time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&entity.Application{}).
		Where("app_number = ?", appNumber).
		Updates(map[string]interface{}{
			"status":           status,
			"approval_comment": comment,
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除申请行，附件由调用方先行清理
func (r *ApplicationRepository) Delete(ctx context.Context, appNumber string) error {
	result := GetDB(ctx, r.db).Where("app_number = ?", appNumber).Delete(&entity.Application{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPage 按条件分页查询，返回当页数据与总数
func (r *ApplicationRepository) ListPage(ctx context.Context, q ApplicationQuery, offset, limit int) ([]entity.Application, int64, error) {
	var apps []entity.Application
	var total int64

	db := GetDB(ctx, r.db)
	if err := filterApplications(db, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := orderApplications(filterApplications(db, q), q).
		Offset(offset).
		Limit(limit).
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// ListAll 按条件查询全部记录（导出用，不分页）
func (r *ApplicationRepository) ListAll(ctx context.Context, q ApplicationQuery) ([]entity.Application, error) {
	var apps []entity.Application
	err := orderApplications(filterApplications(GetDB(ctx, r.db), q), q).Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}
