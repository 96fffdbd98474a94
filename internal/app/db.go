package app

import (
	"context"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/db"
	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/migrate"
	pgstorage "github.com/taoyao-code/v93xx-probe/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if !cfg.AutoMigrate {
		return dbpool, nil
	}

	runner, err := MigrationRunner(cfg.MigrationsDir, log)
	if err != nil {
		dbpool.Close()
		return nil, err
	}
	n, err := runner.Up(ctx, dbpool)
	if err != nil {
		log.Error("db migrate error", zap.Error(err))
		dbpool.Close()
		return nil, err
	}
	log.Info("db migrations applied", zap.Int("count", n))
	return dbpool, nil
}

// MigrationRunner 目录存在时读取目录，否则使用内嵌迁移
func MigrationRunner(dir string, log *zap.Logger) (migrate.Runner, error) {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return migrate.Runner{Dir: dir, Log: log}, nil
		}
	}
	sub, err := fs.Sub(db.Migrations, "migrations")
	if err != nil {
		return migrate.Runner{}, err
	}
	return migrate.Runner{FS: sub, Log: log}, nil
}
