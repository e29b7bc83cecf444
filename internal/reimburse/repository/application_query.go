package repository

import (
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 排序字段白名单，其余取值一律回退到 created_at
var sortableFields = map[string]string{
	"created_at":     "created_at",
	"purchaser":      "purchaser",
	"item_name":      "item_name",
	"invoice_amount": "invoice_amount",
	"invoice_number": "invoice_number",
	"invoice_date":   "invoice_date",
	"purchase_time":  "purchase_time",
	"item_type":      "item_type",
	"status":         "status",
}

const (
	DefaultSort  = "created_at"
	DefaultOrder = "desc"
)

// ApplicationQuery 后台列表与导出共用的筛选、排序条件
type ApplicationQuery struct {
	Purchaser    string
	Status       string
	UsageType    string
	PurchaseFrom *time.Time
	PurchaseTo   *time.Time
	InvoiceFrom  *time.Time
	InvoiceTo    *time.Time
	Sort         string
	Order        string
}

// Normalize trims the free-text filters and replaces an unknown sort field or
// direction with the defaults.
func (q ApplicationQuery) Normalize() ApplicationQuery {
	q.Purchaser = strings.TrimSpace(q.Purchaser)
	q.Status = strings.TrimSpace(q.Status)
	q.UsageType = strings.TrimSpace(q.UsageType)

	if _, ok := sortableFields[q.Sort]; !ok {
		q.Sort = DefaultSort
	}
	q.Order = strings.ToLower(q.Order)
	if q.Order != "asc" && q.Order != "desc" {
		q.Order = DefaultOrder
	}
	return q
}

// HasFilters 是否有生效的筛选条件
func (q ApplicationQuery) HasFilters() bool {
	return q.Purchaser != "" || q.Status != "" || q.UsageType != "" ||
		q.PurchaseFrom != nil || q.PurchaseTo != nil ||
		q.InvoiceFrom != nil || q.InvoiceTo != nil
}

// filterApplications 构造 WHERE 条件，分页列表、计数与导出都走这里
func filterApplications(db *gorm.DB, q ApplicationQuery) *gorm.DB {
	q = q.Normalize()
	query := db.Model(&entity.Application{})

	if q.Purchaser != "" {
		query = query.Where("purchaser LIKE ?", "%"+q.Purchaser+"%")
	}
	if q.Status != "" {
		status, err := entity.ParseStatus(q.Status)
		if err != nil {
			// 未知状态不匹配任何记录
			query = query.Where("1 = 0")
		} else {
			query = query.Where("status = ?", status)
		}
	}
	if q.UsageType != "" {
		query = query.Where("usage_type = ?", q.UsageType)
	}
	if q.PurchaseFrom != nil {
		query = query.Where("purchase_time >= ?", dateValue(*q.PurchaseFrom))
	}
	if q.PurchaseTo != nil {
		query = query.Where("purchase_time <= ?", dateValue(*q.PurchaseTo))
	}
	if q.InvoiceFrom != nil {
		query = query.Where("invoice_date >= ?", dateValue(*q.InvoiceFrom))
	}
	if q.InvoiceTo != nil {
		query = query.Where("invoice_date <= ?", dateValue(*q.InvoiceTo))
	}
	return query
}

// orderApplications 按白名单字段排序，id 作为同值时的稳定次序
func orderApplications(db *gorm.DB, q ApplicationQuery) *gorm.DB {
	q = q.Normalize()
	desc := q.Order == "desc"
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortableFields[q.Sort]}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
}

// dateValue binds a filter date the same way stored dates are written.
func dateValue(t time.Time) datatypes.Date {
	return datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}
