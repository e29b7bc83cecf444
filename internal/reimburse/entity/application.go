package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status 报销申请状态
type Status string

// 申请状态常量
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrInvalidStatus 无法识别的申请状态
var ErrInvalidStatus = errors.New("invalid application status")

var statusLabels = map[Status]string{
	StatusPending:  "待审批",
	StatusApproved: "已通过",
	StatusRejected: "已拒绝",
}

// Statuses 所有合法状态，按审批流程顺序
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusRejected}
}

// Label 状态的中文显示名
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Editable 申请人只能修改待审批或已拒绝的申请
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusRejected
}

// ParseStatus accepts either the status code or its Chinese label.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if s := Status(strings.ToLower(raw)); s.Valid() {
		return s, nil
	}
	for s, label := range statusLabels {
		if label == raw {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// Application 报销申请
type Application struct {
	ID              uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	AppNumber       string          `json:"app_number" gorm:"size:32;not null;uniqueIndex"`
	Purchaser       string          `json:"purchaser" gorm:"size:64;not null;index"`
	PurchaseDetails string          `json:"purchase_details" gorm:"type:text"`
	ItemName        string          `json:"item_name" gorm:"size:256;not null"`
	ProductLink     string          `json:"product_link" gorm:"size:1024"`
	UsageType       string          `json:"usage_type" gorm:"size:64;not null;index"`
	ItemType        string          `json:"item_type" gorm:"size:64;not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	PurchaseTime    datatypes.Date  `json:"purchase_time" gorm:"not null"`
	InvoiceNumber   string          `json:"invoice_number" gorm:"size:64;not null;uniqueIndex"`
	InvoiceAmount   decimal.Decimal `json:"invoice_amount" gorm:"type:decimal(12,2);not null"`
	InvoiceDate     datatypes.Date  `json:"invoice_date" gorm:"not null"`
	Status          Status          `json:"status" gorm:"size:16;not null;default:'pending';index"`
	ApprovalComment string          `json:"approval_comment" gorm:"type:text"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// 关联
	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:AppNumber;references:AppNumber"`
}

func (Application) TableName() string {
	return "applications"
}

// StatusLabel 状态中文名，用于页面与导出
func (a *Application) StatusLabel() string {
	return a.Status.Label()
}

// Attachment 报销申请附件
type Attachment struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	AppNumber        string    `json:"app_number" gorm:"size:32;not null;index"`
	OriginalFilename string    `json:"original_filename" gorm:"size:256;not null"`
	StoredFilename   string    `json:"stored_filename" gorm:"size:256;not null;uniqueIndex"`
	FilePath         string    `json:"file_path" gorm:"size:512;not null"`
	FileSize         int64     `json:"file_size" gorm:"default:0"`
	ContentType      string    `json:"content_type" gorm:"size:128"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

// Admin 管理员账号
type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}
