package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/db"
	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/migrate"
	pgstorage "github.com/taoyao-code/zvt-tap/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行迁移
// cfg.MigrationsDir 为空时使用内嵌迁移脚本
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = NewMigrationRunner(cfg, log).Up(ctx, dbpool); err != nil {
			log.Error("db migrate error", zap.Error(err))
			return dbpool, err
		}
		log.Info("db migrations applied")
	}
	return dbpool, nil
}

// NewMigrationRunner 按配置选择迁移来源
func NewMigrationRunner(cfg cfgpkg.DatabaseConfig, log *zap.Logger) migrate.Runner {
	if cfg.MigrationsDir != "" {
		return migrate.Runner{Dir: cfg.MigrationsDir, Logger: log}
	}
	return migrate.Runner{FS: db.Migrations, Logger: log}
}
