package handler

import (
	"mime"
	"path/filepath"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AttachmentHandler 附件下载
type AttachmentHandler struct {
	svc    *service.AttachmentService
	logger *zap.Logger
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(svc *service.AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{svc: svc, logger: logger}
}

// Download GET /download/:filename
func (h *AttachmentHandler) Download(c *gin.Context) {
	dl, err := h.svc.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer dl.Body.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(c.Param("filename")))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := dl.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(200, size, contentType, dl.Body, map[string]string{
		"Content-Disposition": contentDisposition("inline", dl.Filename),
	})
}
