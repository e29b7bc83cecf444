package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/xuri/excelize/v2"
)

// ExportSheet 导出工作表名
const ExportSheet = "报销申请"

// ExportHeaders 导出表头
var ExportHeaders = []string{
	"ID", "申请编号", "购买人", "商品参数及用途说明", "物品名称", "商品链接", "使用途径",
	"物品类型", "数量", "购买时间", "发票号码", "发票金额", "开票日期",
	"状态", "审批意见", "创建时间", "更新时间",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportResult 导出结果
type ExportResult struct {
	File     *excelize.File
	Filename string
	Rows     int
}

// ExportService 导出 Excel
type ExportService struct {
	repo *repository.ApplicationRepository
	now  func() time.Time
}

// NewExportService 创建导出服务
func NewExportService(repo *repository.ApplicationRepository) *ExportService {
	return &ExportService{repo: repo, now: time.Now}
}

// Export 按列表相同的筛选与排序导出全部记录
func (s *ExportService) Export(ctx context.Context, q repository.ApplicationQuery) (*ExportResult, error) {
	q = q.Normalize()
	apps, err := s.repo.ListAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	f := excelize.NewFile()
	sheet := ExportSheet
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range ExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i := range apps {
		if err := writeExportRow(f, sheet, i+2, &apps[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	colWidths := []float64{6, 18, 10, 30, 20, 30, 12, 12, 6, 12, 16, 12, 12, 8, 24, 20, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return &ExportResult{
		File:     f,
		Filename: ExportFilename(q, s.now()),
		Rows:     len(apps),
	}, nil
}

func writeExportRow(f *excelize.File, sheet string, row int, app *entity.Application) error {
	amount, _ := app.InvoiceAmount.Float64()
	values := []interface{}{
		app.ID,
		app.AppNumber,
		app.Purchaser,
		app.PurchaseDetails,
		app.ItemName,
		app.ProductLink,
		app.UsageType,
		app.ItemType,
		app.Quantity,
		time.Time(app.PurchaseTime).Format(dateLayout),
		app.InvoiceNumber,
		amount,
		time.Time(app.InvoiceDate).Format(dateLayout),
		app.StatusLabel(),
		app.ApprovalComment,
		app.CreatedAt.Format(exportTimeLayout),
		app.UpdatedAt.Format(exportTimeLayout),
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// ExportFilename 文件名体现生效的筛选条件与导出日期
func ExportFilename(q repository.ApplicationQuery, now time.Time) string {
	if !q.HasFilters() {
		return ExportSheet + "_" + now.Format("20060102") + ".xlsx"
	}

	var b strings.Builder
	b.WriteString(ExportSheet)

	if q.Purchaser != "" {
		b.WriteString("_购买人-" + q.Purchaser)
	}
	if q.Status != "" {
		label := q.Status
		if status, err := entity.ParseStatus(q.Status); err == nil {
			label = status.Label()
		}
		b.WriteString("_状态-" + label)
	}
	if q.UsageType != "" {
		b.WriteString("_用途-" + q.UsageType)
	}
	if q.PurchaseFrom != nil || q.PurchaseTo != nil {
		b.WriteString("_购买" + rangeFragment(q.PurchaseFrom, q.PurchaseTo))
	}
	if q.InvoiceFrom != nil || q.InvoiceTo != nil {
		b.WriteString("_开票" + rangeFragment(q.InvoiceFrom, q.InvoiceTo))
	}

	b.WriteString("_" + now.Format("20060102") + ".xlsx")
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, b.String())
}

func rangeFragment(from, to *time.Time) string {
	var start, end string
	if from != nil {
		start = from.Format("20060102")
	}
	if to != nil {
		end = to.Format("20060102")
	}
	return start + "至" + end
}
