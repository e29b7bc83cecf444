package main

import (
	"fmt"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/bitfantasy/nimo-reimburse/internal/shared/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "建表并创建初始管理员",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database, logger.Info)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, session.NewMemoryStore())
		auth := service.NewAuthService(repository.NewRepositories(db).Admin, sessions, zapLogger)
		created, err := auth.SeedAdmin(cmd.Context(), cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}

		zapLogger.Info("Migration finished",
			zap.String("driver", cfg.Database.Driver),
			zap.Bool("admin_created", created),
		)
		return nil
	},
}
