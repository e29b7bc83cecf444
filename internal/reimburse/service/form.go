package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// invoice_amount 列为 decimal(12,2)
var maxInvoiceAmount = decimal.RequireFromString("9999999999.99")

const dateLayout = "2006-01-02"

// ApplicationForm 申请表单原始输入，提交与修改共用
type ApplicationForm struct {
	Purchaser       string `form:"purchaser" json:"purchaser"`
	PurchaseDetails string `form:"purchase_details" json:"purchase_details"`
	ItemName        string `form:"item_name" json:"item_name"`
	ProductLink     string `form:"product_link" json:"product_link"`
	UsageType       string `form:"usage_type" json:"usage_type"`
	ItemType        string `form:"item_type" json:"item_type"`
	Quantity        string `form:"quantity" json:"quantity"`
	PurchaseTime    string `form:"purchase_time" json:"purchase_time"`
	InvoiceNumber   string `form:"invoice_number" json:"invoice_number"`
	InvoiceAmount   string `form:"invoice_amount" json:"invoice_amount"`
	InvoiceDate     string `form:"invoice_date" json:"invoice_date"`
}

// applicationFields 校验通过后的可编辑字段
type applicationFields struct {
	Purchaser       string
	PurchaseDetails string
	ItemName        string
	ProductLink     string
	UsageType       string
	ItemType        string
	Quantity        int
	PurchaseTime    datatypes.Date
	InvoiceNumber   string
	InvoiceAmount   decimal.Decimal
	InvoiceDate     datatypes.Date
}

// validate 校验并转换表单，返回第一个不合法的字段
func (f ApplicationForm) validate() (*applicationFields, error) {
	out := &applicationFields{
		Purchaser:       strings.TrimSpace(f.Purchaser),
		PurchaseDetails: strings.TrimSpace(f.PurchaseDetails),
		ItemName:        strings.TrimSpace(f.ItemName),
		ProductLink:     strings.TrimSpace(f.ProductLink),
		UsageType:       strings.TrimSpace(f.UsageType),
		ItemType:        strings.TrimSpace(f.ItemType),
		InvoiceNumber:   strings.TrimSpace(f.InvoiceNumber),
	}

	required := []struct{ field, value, label string }{
		{"purchaser", out.Purchaser, "购买人"},
		{"item_name", out.ItemName, "物品名称"},
		{"usage_type", out.UsageType, "使用途径"},
		{"item_type", out.ItemType, "物品类型"},
		{"invoice_number", out.InvoiceNumber, "发票号码"},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, invalid(r.field, "请填写"+r.label)
		}
	}

	qty, err := strconv.Atoi(strings.TrimSpace(f.Quantity))
	if err != nil || qty <= 0 {
		return nil, invalid("quantity", "数量必须是正整数")
	}
	out.Quantity = qty

	amount, err := decimal.NewFromString(strings.TrimSpace(f.InvoiceAmount))
	if err != nil || amount.IsNegative() {
		return nil, invalid("invoice_amount", "发票金额必须是非负数")
	}
	amount = amount.Round(2)
	if amount.GreaterThan(maxInvoiceAmount) {
		return nil, invalid("invoice_amount", "发票金额不能超过 "+maxInvoiceAmount.StringFixed(2))
	}
	out.InvoiceAmount = amount

	if out.PurchaseTime, err = parseDate(f.PurchaseTime); err != nil {
		return nil, invalid("purchase_time", "购买时间格式应为 YYYY-MM-DD")
	}
	if out.InvoiceDate, err = parseDate(f.InvoiceDate); err != nil {
		return nil, invalid("invoice_date", "开票日期格式应为 YYYY-MM-DD")
	}
	return out, nil
}

func (f *applicationFields) applyTo(app *entity.Application) {
	app.Purchaser = f.Purchaser
	app.PurchaseDetails = f.PurchaseDetails
	app.ItemName = f.ItemName
	app.ProductLink = f.ProductLink
	app.UsageType = f.UsageType
	app.ItemType = f.ItemType
	app.Quantity = f.Quantity
	app.PurchaseTime = f.PurchaseTime
	app.InvoiceNumber = f.InvoiceNumber
	app.InvoiceAmount = f.InvoiceAmount
	app.InvoiceDate = f.InvoiceDate
}

func parseDate(raw string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}

// ParseDate 解析 YYYY-MM-DD，空串返回 nil
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
