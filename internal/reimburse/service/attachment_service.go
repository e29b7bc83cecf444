package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/storage"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// 同一发票号码下最多尝试的后缀数
const maxFilenameAttempts = 1000

// Upload 一个待保存的上传文件
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// AttachmentService 附件服务
type AttachmentService struct {
	repo   *repository.AttachmentRepository
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewAttachmentService 创建附件服务
func NewAttachmentService(repo *repository.AttachmentRepository, store storage.Store, logger *zap.Logger) *AttachmentService {
	return &AttachmentService{repo: repo, store: store, logger: logger, now: time.Now}
}

// safeChars keeps [A-Za-z0-9._-] and replaces everything else with '_'.
func safeChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// sanitizeInvoice 发票号码作为文件名前缀，不允许路径分隔符和前导点
func sanitizeInvoice(invoiceNumber string) string {
	name := strings.Trim(safeChars(invoiceNumber), ".")
	if name == "" {
		return "attachment"
	}
	return name
}

// originalName 去掉客户端路径，统一为 NFC
func originalName(filename string) string {
	name := norm.NFC.String(filename)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// extension 取小写扩展名
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(originalName(filename)))
	if len(ext) <= 1 {
		return ""
	}
	return "." + safeChars(ext[1:])
}

// candidateName 第 n 个候选文件名：n=0 为 <invoice><ext>，之后为 <invoice>_n<ext>
func candidateName(invoiceNumber, ext string, n int) string {
	base := sanitizeInvoice(invoiceNumber)
	if n == 0 {
		return base + ext
	}
	return base + "_" + strconv.Itoa(n) + ext
}

// ResolveStoredFilename 返回当前未被占用的存储文件名
func (s *AttachmentService) ResolveStoredFilename(ctx context.Context, invoiceNumber, originalFilename string) (string, error) {
	ext := extension(originalFilename)
	for n := 0; n < maxFilenameAttempts; n++ {
		name := candidateName(invoiceNumber, ext, n)
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("check stored file: %w", err)
		}
		if !exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free filename for invoice %s", invoiceNumber)
}

// put 写入文件。解析出的名字在写入前被他人占用时重新解析
func (s *AttachmentService) put(ctx context.Context, invoiceNumber string, up Upload) (string, error) {
	for attempt := 0; attempt < maxFilenameAttempts; attempt++ {
		name, err := s.ResolveStoredFilename(ctx, invoiceNumber, up.Filename)
		if err != nil {
			return "", err
		}
		rc, err := up.Open()
		if err != nil {
			return "", fmt.Errorf("open upload: %w", err)
		}
		err = s.store.Put(ctx, name, rc, up.Size, up.ContentType)
		rc.Close()
		if errors.Is(err, storage.ErrExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store file: %w", err)
		}
		return name, nil
	}
	return "", fmt.Errorf("no free filename for invoice %s", invoiceNumber)
}

// Save stores every non-empty upload and records it against appNumber. The rows
// written so far are returned even on error so the caller can discard their files.
func (s *AttachmentService) Save(ctx context.Context, appNumber, invoiceNumber string, uploads []Upload) ([]entity.Attachment, error) {
	var saved []entity.Attachment
	for _, up := range uploads {
		name := originalName(up.Filename)
		if name == "" || up.Open == nil {
			continue
		}

		stored, err := s.put(ctx, invoiceNumber, up)
		if err != nil {
			return saved, err
		}

		att := entity.Attachment{
			AppNumber:        appNumber,
			OriginalFilename: name,
			StoredFilename:   stored,
			FilePath:         s.store.Path(stored),
			FileSize:         up.Size,
			ContentType:      up.ContentType,
			CreatedAt:        s.now(),
		}
		if err := s.repo.Create(ctx, &att); err != nil {
			s.deleteFile(ctx, stored)
			return saved, fmt.Errorf("create attachment: %w", err)
		}
		saved = append(saved, att)
	}
	return saved, nil
}

// Discard 删除已写入但所属事务失败的文件
func (s *AttachmentService) Discard(ctx context.Context, atts []entity.Attachment) {
	for _, att := range atts {
		s.deleteFile(ctx, att.StoredFilename)
	}
}

// deleteFile 尽力删除文件，文件已不存在只记录警告
func (s *AttachmentService) deleteFile(ctx context.Context, name string) {
	err := s.store.Delete(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotExist):
		s.logger.Warn("attachment file already missing", zap.String("filename", name))
	default:
		s.logger.Warn("delete attachment file failed", zap.String("filename", name), zap.Error(err))
	}
}

// Detach 删除 ids 中属于该申请的附件记录，返回被删除的附件。
// 文件由调用方在事务提交后通过 Discard 删除。
func (s *AttachmentService) Detach(ctx context.Context, owned []entity.Attachment, ids []uint) ([]entity.Attachment, error) {
	byID := make(map[uint]entity.Attachment, len(owned))
	for _, att := range owned {
		byID[att.ID] = att
	}

	var removed []entity.Attachment
	for _, id := range ids {
		att, ok := byID[id]
		if !ok {
			continue
		}
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return removed, fmt.Errorf("delete attachment: %w", err)
		}
		delete(byID, id)
		removed = append(removed, att)
	}
	return removed, nil
}

// Download 一个待下载的附件
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Open 按存储文件名打开附件
func (s *AttachmentService) Open(ctx context.Context, storedFilename string) (*Download, error) {
	name := storedFilename
	if !storage.ValidName(name) {
		return nil, ErrAttachmentNotFound
	}

	body, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}

	dl := &Download{Filename: name, Body: body}
	// 附件记录只用于还原原始文件名
	att, err := s.repo.FindByStoredFilename(ctx, name)
	switch {
	case err == nil:
		dl.Filename = att.OriginalFilename
		dl.ContentType = att.ContentType
		dl.Size = att.FileSize
	case errors.Is(err, repository.ErrNotFound):
	default:
		body.Close()
		return nil, fmt.Errorf("find attachment: %w", err)
	}
	return dl, nil
}
