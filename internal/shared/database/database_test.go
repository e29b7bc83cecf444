package database

import (
	"path/filepath"
	"testing"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestDialectorNames(t *testing.T) {
	cases := map[string]string{
		"sqlite":    "sqlite",
		"postgres":  "postgres",
		"mysql":     "mysql",
		"sqlserver": "sqlserver",
	}
	for driver, name := range cases {
		d, err := Dialector(config.DatabaseConfig{
			Driver: driver,
			Path:   filepath.Join(t.TempDir(), "x.db"),
			Host:   "localhost",
			Port:   5432,
		})
		require.NoError(t, err, driver)
		assert.Equal(t, name, d.Name(), driver)
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reimburse.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: path, MaxOpenConns: 4}, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	require.NoError(t, Migrate(db))
	// 重复迁移应当是幂等的
	require.NoError(t, Migrate(db))

	for _, table := range []string{"applications", "attachments", "admins"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("applications", "idx_applications_invoice_number"))
}
