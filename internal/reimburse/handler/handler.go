package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Application *ApplicationHandler
	Admin       *AdminHandler
	Attachment  *AttachmentHandler
	logger      *zap.Logger
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{
		Application: NewApplicationHandler(svc.Application, cfg.Server.MaxUploadMB, logger),
		Admin:       NewAdminHandler(svc, cfg.Session, logger),
		Attachment:  NewAttachmentHandler(svc.Attachment, logger),
		logger:      logger,
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondError 将服务层错误映射为响应，未知错误只记录日志
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequest(c, verr.Message)
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, "申请不存在")
	case errors.Is(err, service.ErrAttachmentNotFound):
		NotFound(c, "文件不存在")
	case errors.Is(err, service.ErrDuplicateInvoice):
		Conflict(c, "该发票号码已存在，请勿重复提交")
	case errors.Is(err, service.ErrNotEditable):
		Error(c, 40901, "当前状态不允许修改")
	case errors.Is(err, service.ErrInvalidStatus):
		BadRequest(c, "无效的审批状态")
	case errors.Is(err, service.ErrInvalidCredentials):
		Unauthorized(c, "用户名或密码错误")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(c, 41300, "请求内容过大")
			return
		}
		c.Error(err)
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		InternalError(c, "服务器内部错误")
	}
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) service.PageRequest {
	var p service.PageRequest
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("per_page")); err == nil {
		p.PerPage = v
	}
	return p.Normalize()
}
