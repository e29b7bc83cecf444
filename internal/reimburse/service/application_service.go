package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"go.uber.org/zap"
)

// 申请编号冲突时的最大尝试次数
const maxAppNumberAttempts = 3

// ApplicationService 报销申请生命周期
type ApplicationService struct {
	repo        *repository.ApplicationRepository
	attachRepo  *repository.AttachmentRepository
	tx          *repository.TransactionManager
	attachments *AttachmentService
	logger      *zap.Logger
	now         func() time.Time
}

// NewApplicationService 创建报销申请服务
func NewApplicationService(repos *repository.Repositories, attachments *AttachmentService, logger *zap.Logger) *ApplicationService {
	return &ApplicationService{
		repo:        repos.Application,
		attachRepo:  repos.Attachment,
		tx:          repos.Tx,
		attachments: attachments,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit 提交新申请，状态为待审批
func (s *ApplicationService) Submit(ctx context.Context, form ApplicationForm, uploads []Upload) (*entity.Application, error) {
	fields, err := form.validate()
	if err != nil {
		return nil, err
	}

	// 快速路径：提前给出友好的重复提示，最终以唯一索引为准
	taken, err := s.repo.InvoiceNumberTaken(ctx, fields.InvoiceNumber, "")
	if err != nil {
		return nil, fmt.Errorf("check invoice number: %w", err)
	}
	if taken {
		return nil, ErrDuplicateInvoice
	}

	for attempt := 1; attempt <= maxAppNumberAttempts; attempt++ {
		now := s.now()
		app := &entity.Application{
			AppNumber: GenerateAppNumber(now),
			Status:    entity.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		fields.applyTo(app)

		var saved []entity.Attachment
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.repo.Create(txCtx, app); err != nil {
				return err
			}
			var err error
			saved, err = s.attachments.Save(txCtx, app.AppNumber, app.InvoiceNumber, uploads)
			return err
		})
		if err == nil {
			app.Attachments = saved
			s.logger.Info("application submitted",
				zap.String("app_number", app.AppNumber),
				zap.String("invoice_number", app.InvoiceNumber),
				zap.Int("attachments", len(saved)))
			return app, nil
		}

		s.attachments.Discard(ctx, saved)
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("create application: %w", err)
		}

		// 区分发票号码冲突与申请编号冲突
		taken, checkErr := s.repo.InvoiceNumberTaken(ctx, fields.InvoiceNumber, "")
		if checkErr != nil {
			return nil, fmt.Errorf("check invoice number: %w", checkErr)
		}
		if taken {
			return nil, ErrDuplicateInvoice
		}
		s.logger.Warn("app number collision, retrying",
			zap.String("app_number", app.AppNumber), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("create application: %w", err)
}

// GetByAppNumber 按申请编号查询
func (s *ApplicationService) GetByAppNumber(ctx context.Context, appNumber string) (*entity.Application, error) {
	app, err := s.repo.FindByAppNumber(ctx, appNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// GetByInvoiceNumber 按发票号码查询
func (s *ApplicationService) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Application, error) {
	app, err := s.repo.FindByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// InvoiceExists 发票号码是否已被使用
func (s *ApplicationService) InvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return s.repo.InvoiceNumberTaken(ctx, invoiceNumber, "")
}

// Edit 修改待审批或已拒绝的申请：覆盖字段，删除指定附件，追加新附件
func (s *ApplicationService) Edit(ctx context.Context, appNumber string, form ApplicationForm, uploads []Upload, deleteIDs []uint) (*entity.Application, error) {
	app, err := s.GetByAppNumber(ctx, appNumber)
	if err != nil {
		return nil, err
	}
	if !app.Status.Editable() {
		return nil, ErrNotEditable
	}

	fields, err := form.validate()
	if err != nil {
		return nil, err
	}
	if fields.InvoiceNumber != app.InvoiceNumber {
		taken, err := s.repo.InvoiceNumberTaken(ctx, fields.InvoiceNumber, app.AppNumber)
		if err != nil {
			return nil, fmt.Errorf("check invoice number: %w", err)
		}
		if taken {
			return nil, ErrDuplicateInvoice
		}
	}

	fields.applyTo(app)
	updatedAt := s.now()
	if !updatedAt.After(app.UpdatedAt) {
		updatedAt = app.UpdatedAt.Add(time.Microsecond)
	}
	app.UpdatedAt = updatedAt

	var removed, saved []entity.Attachment
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, app); err != nil {
			return err
		}
		var err error
		removed, err = s.attachments.Detach(txCtx, app.Attachments, deleteIDs)
		if err != nil {
			return err
		}
		saved, err = s.attachments.Save(txCtx, app.AppNumber, app.InvoiceNumber, uploads)
		return err
	})
	if err != nil {
		s.attachments.Discard(ctx, saved)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateInvoice
		}
		return nil, fmt.Errorf("update application: %w", err)
	}

	// 记录已提交，再删除被移除附件的文件
	s.attachments.Discard(ctx, removed)

	s.logger.Info("application edited",
		zap.String("app_number", app.AppNumber),
		zap.Int("removed_attachments", len(removed)),
		zap.Int("new_attachments", len(saved)))
	return s.GetByAppNumber(ctx, app.AppNumber)
}

// Approve 管理员设置审批状态与意见，任意状态之间均可切换
func (s *ApplicationService) Approve(ctx context.Context, appNumber, rawStatus, comment string) (*entity.Application, error) {
	status, err := entity.ParseStatus(rawStatus)
	if err != nil {
		return nil, ErrInvalidStatus
	}

	app, err := s.GetByAppNumber(ctx, appNumber)
	if err != nil {
		return nil, err
	}
	updatedAt := s.now()
	if !updatedAt.After(app.UpdatedAt) {
		updatedAt = app.UpdatedAt.Add(time.Microsecond)
	}

	if err := s.repo.UpdateStatus(ctx, appNumber, status, comment, updatedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("application reviewed",
		zap.String("app_number", appNumber),
		zap.String("from", string(app.Status)),
		zap.String("to", string(status)))

	app.Status = status
	app.ApprovalComment = comment
	app.UpdatedAt = updatedAt
	return app, nil
}

// Delete 删除申请：事务中删附件记录与申请，提交后再删文件
func (s *ApplicationService) Delete(ctx context.Context, appNumber string) error {
	app, err := s.GetByAppNumber(ctx, appNumber)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.attachRepo.DeleteByAppNumber(txCtx, appNumber); err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		return s.repo.Delete(txCtx, appNumber)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete application: %w", err)
	}

	s.attachments.Discard(ctx, app.Attachments)

	s.logger.Info("application deleted",
		zap.String("app_number", appNumber),
		zap.Int("attachments", len(app.Attachments)))
	return nil
}
