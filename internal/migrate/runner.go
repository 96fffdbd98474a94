package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DB 迁移所需的最小数据库能力，*pgxpool.Pool 满足
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Runner 迁移执行器；FS 优先，未设置时读取 Dir
type Runner struct {
	Dir string
	FS  fs.FS
	Log *zap.Logger
}

// Migration 单个向上迁移文件
type Migration struct {
	Version int64
	Path    string
}

// EnsureTable 保证 schema_migrations 表存在
func EnsureTable(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`)
	return err
}

// AppliedVersions 已应用版本
func AppliedVersions(ctx context.Context, db DB) (map[int64]bool, error) {
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res[v] = true
	}
	return res, rows.Err()
}

func (r Runner) fsys() (fs.FS, error) {
	if r.FS != nil {
		return r.FS, nil
	}
	if r.Dir == "" {
		return nil, errors.New("migrations dir is empty")
	}
	return os.DirFS(r.Dir), nil
}

// Discover 扫描 *_up.sql，按文件名前缀数字排序；版本重复视为错误
func Discover(fsys fs.FS) ([]Migration, error) {
	var files []Migration
	seen := make(map[int64]string)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := path.Base(p)
		if !strings.HasSuffix(name, "_up.sql") {
			return nil
		}
		prefix, _, _ := strings.Cut(name, "_")
		ver, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil
		}
		if prev, dup := seen[ver]; dup {
			return fmt.Errorf("duplicate migration version %d: %s, %s", ver, prev, p)
		}
		seen[ver] = p
		files = append(files, Migration{Version: ver, Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// Pending 过滤出未应用的迁移
func Pending(all []Migration, applied map[int64]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// Up 执行未应用的向上迁移，每个文件一个事务；返回本次应用的数量
func (r Runner) Up(ctx context.Context, db DB) (int, error) {
	fsys, err := r.fsys()
	if err != nil {
		return 0, err
	}
	if err := EnsureTable(ctx, db); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}
	all, err := Discover(fsys)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range Pending(all, applied) {
		content, err := fs.ReadFile(fsys, m.Path)
		if err != nil {
			return n, err
		}
		if err := apply(ctx, db, m, string(content)); err != nil {
			return n, fmt.Errorf("migration %s: %w", m.Path, err)
		}
		n++
		if r.Log != nil {
			r.Log.Info("migration applied", zap.Int64("version", m.Version), zap.String("file", m.Path))
		}
	}
	return n, nil
}

func apply(ctx context.Context, db DB, m Migration, sql string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(ctx, sql)
	if execErr == nil {
		_, execErr = tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1,$2)`, m.Version, time.Now())
	}
	if execErr != nil {
		_ = tx.Rollback(ctx)
		return execErr
	}
	return tx.Commit(ctx)
}
