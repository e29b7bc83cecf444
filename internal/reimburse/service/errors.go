package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
)

// 错误定义
var (
	ErrNotFound           = errors.New("application not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrDuplicateInvoice   = errors.New("invoice number already exists")
	ErrNotEditable        = errors.New("application is not editable in its current status")
	ErrInvalidStatus      = entity.ErrInvalidStatus
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError 表单字段校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
