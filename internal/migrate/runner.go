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

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Runner 迁移执行器；FS 优先，未设置时读取 Dir 目录
type Runner struct {
	FS     fs.FS
	Dir    string
	Logger *zap.Logger
}

// EnsureTable 保证 schema_migrations 表存在
func EnsureTable(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`)
	return err
}

// AppliedVersions 已应用版本
func AppliedVersions(ctx context.Context, db *pgxpool.Pool) (map[int64]bool, error) {
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

type migrationFile struct {
	Version int64
	Path    string
}

func (r Runner) source() (fs.FS, error) {
	if r.FS != nil {
		return r.FS, nil
	}
	if r.Dir == "" {
		return nil, errors.New("migrations dir is empty")
	}
	return os.DirFS(r.Dir), nil
}

// discover 扫描 *_<suffix>.sql，按版本升序
func discover(fsys fs.FS, suffix string) ([]migrationFile, error) {
	var files []migrationFile
	seen := make(map[int64]string)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := path.Base(p)
		if !strings.HasSuffix(name, "_"+suffix+".sql") {
			return nil
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil
		}
		ver, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil
		}
		if prev, dup := seen[ver]; dup {
			return fmt.Errorf("duplicate migration version %d: %s, %s", ver, prev, p)
		}
		seen[ver] = p
		files = append(files, migrationFile{Version: ver, Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// Pending 返回尚未应用的向上迁移版本
func (r Runner) Pending(applied map[int64]bool) ([]int64, error) {
	fsys, err := r.source()
	if err != nil {
		return nil, err
	}
	ups, err := discover(fsys, "up")
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, m := range ups {
		if !applied[m.Version] {
			out = append(out, m.Version)
		}
	}
	return out, nil
}

// Up 执行未应用的向上迁移，每个版本一个事务
func (r Runner) Up(ctx context.Context, db *pgxpool.Pool) error {
	fsys, err := r.source()
	if err != nil {
		return err
	}
	if err := EnsureTable(ctx, db); err != nil {
		return err
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	ups, err := discover(fsys, "up")
	if err != nil {
		return err
	}
	for _, m := range ups {
		if applied[m.Version] {
			continue
		}
		content, err := fs.ReadFile(fsys, m.Path)
		if err != nil {
			return err
		}
		tx, err := db.Begin(ctx)
		if err != nil {
			return err
		}
		_, execErr := tx.Exec(ctx, string(content))
		if execErr == nil {
			_, execErr = tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1,$2)`, m.Version, time.Now())
		}
		if execErr != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %d: %w", m.Version, execErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		if r.Logger != nil {
			r.Logger.Info("migration applied", zap.Int64("version", m.Version), zap.String("file", m.Path))
		}
	}
	return nil
}

// Down 回滚最近一个已应用版本
func (r Runner) Down(ctx context.Context, db *pgxpool.Pool) error {
	fsys, err := r.source()
	if err != nil {
		return err
	}
	if err := EnsureTable(ctx, db); err != nil {
		return err
	}
	var ver int64
	err = db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&ver)
	if err != nil {
		return err
	}
	if ver == 0 {
		return nil
	}
	downs, err := discover(fsys, "down")
	if err != nil {
		return err
	}
	for _, m := range downs {
		if m.Version != ver {
			continue
		}
		content, err := fs.ReadFile(fsys, m.Path)
		if err != nil {
			return err
		}
		tx, err := db.Begin(ctx)
		if err != nil {
			return err
		}
		_, execErr := tx.Exec(ctx, string(content))
		if execErr == nil {
			_, execErr = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, ver)
		}
		if execErr != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("rollback %d: %w", ver, execErr)
		}
		return tx.Commit(ctx)
	}
	return fmt.Errorf("no down migration for version %d", ver)
}
