package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/bitfantasy/nimo-reimburse/internal/shared/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

var exportFlags struct {
	out          string
	purchaser    string
	status       string
	usage        string
	purchaseFrom string
	purchaseTo   string
	invoiceFrom  string
	invoiceTo    string
	sort         string
	order        string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "按筛选条件导出 Excel",
	Example: `  reimburse export --status approved --invoice-from 2024-01-01 --invoice-to 2024-03-31
  reimburse export --purchaser 张三 --out ./exports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := repository.ApplicationQuery{
			Purchaser: exportFlags.purchaser,
			Status:    exportFlags.status,
			UsageType: exportFlags.usage,
			Sort:      exportFlags.sort,
			Order:     exportFlags.order,
		}
		dates := []struct {
			flag string
			raw  string
			dst  **time.Time
		}{
			{"purchase-from", exportFlags.purchaseFrom, &q.PurchaseFrom},
			{"purchase-to", exportFlags.purchaseTo, &q.PurchaseTo},
			{"invoice-from", exportFlags.invoiceFrom, &q.InvoiceFrom},
			{"invoice-to", exportFlags.invoiceTo, &q.InvoiceTo},
		}
		for _, d := range dates {
			t, err := service.ParseDate(d.raw)
			if err != nil {
				return fmt.Errorf("--%s: %w", d.flag, err)
			}
			*d.dst = t
		}

		db, err := database.Open(cfg.Database, logger.Warn)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close(db)

		result, err := service.NewExportService(repository.NewApplicationRepository(db)).Export(cmd.Context(), q.Normalize())
		if err != nil {
			return err
		}
		defer result.File.Close()

		path := filepath.Join(exportFlags.out, result.Filename)
		if err := result.File.SaveAs(path); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}

		zapLogger.Info("Export finished", zap.String("file", path), zap.Int("rows", result.Rows))
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.out, "out", ".", "输出目录")
	f.StringVar(&exportFlags.purchaser, "purchaser", "", "购买人（模糊匹配）")
	f.StringVar(&exportFlags.status, "status", "", "状态：pending/approved/rejected")
	f.StringVar(&exportFlags.usage, "usage", "", "用途")
	f.StringVar(&exportFlags.purchaseFrom, "purchase-from", "", "购买日期起 YYYY-MM-DD")
	f.StringVar(&exportFlags.purchaseTo, "purchase-to", "", "购买日期止 YYYY-MM-DD")
	f.StringVar(&exportFlags.invoiceFrom, "invoice-from", "", "开票日期起 YYYY-MM-DD")
	f.StringVar(&exportFlags.invoiceTo, "invoice-to", "", "开票日期止 YYYY-MM-DD")
	f.StringVar(&exportFlags.sort, "sort", repository.DefaultSort, "排序字段")
	f.StringVar(&exportFlags.order, "order", repository.DefaultOrder, "排序方向 asc/desc")
}
