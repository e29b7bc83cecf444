package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	cfg       *config.Config
	zapLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reimburse",
	Short: "报销申请管理服务",
	Long: `reimburse 提供报销申请的提交、查询、修改以及管理员审批与导出。

  reimburse serve     启动 HTTP 服务
  reimburse migrate   建表并创建初始管理员
  reimburse export    按条件导出 Excel`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载 .env 文件
		envFile := config.GetEnvOrDefault("REIMBURSE_ENV_FILE", ".env")
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Warning: %s not found, using environment variables", envFile)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zapLogger, err = initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zapLogger != nil {
			zapLogger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	// 操作日志同时写入文件
	if cfg.Output == "file" && cfg.FilePath != "" {
		if err := os.MkdirAll(dirOf(cfg.FilePath), 0o755); err != nil {
			return nil, err
		}
		zapCfg.OutputPaths = []string{"stdout", cfg.FilePath}
	}

	return zapCfg.Build()
}
