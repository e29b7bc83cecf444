package service

import (
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/storage"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Application *ApplicationService
	Attachment  *AttachmentService
	Query       *QueryService
	Export      *ExportService
	Auth        *AuthService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, store storage.Store, sessions *session.Manager, logger *zap.Logger) *Services {
	attachments := NewAttachmentService(repos.Attachment, store, logger)
	return &Services{
		Application: NewApplicationService(repos, attachments, logger),
		Attachment:  attachments,
		Query:       NewQueryService(repos.Application),
		Export:      NewExportService(repos.Application),
		Auth:        NewAuthService(repos.Admin, sessions, logger),
	}
}

// WithClock 替换所有服务的时钟，测试用
func (s *Services) WithClock(now func() time.Time) *Services {
	s.Application.now = now
	s.Attachment.now = now
	s.Export.now = now
	return s
}
