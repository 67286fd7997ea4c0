package gormrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/zvt-tap/internal/storage"
	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Repository 基于 GORM 的抓包只读查询，供 HTTP API 使用。
// 写入走 pg.Repository 的批量路径。
type Repository struct {
	db *gorm.DB
}

// Open 按 DSN 打开 GORM 连接（静默 SQL 日志）
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
}

// New 返回一个使用给定 *gorm.DB 的 CaptureReader。
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ storage.CaptureReader = (*Repository)(nil)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// ListUnits 按条件分页返回抓包记录，按抓取时间倒序。
func (r *Repository) ListUnits(ctx context.Context, f storage.CaptureFilter) ([]models.CapturedUnit, error) {
	q := r.db.WithContext(ctx).Model(&models.CapturedUnit{})
	if f.ConnID != "" {
		q = q.Where("conn_id = ?", f.ConnID)
	}
	if f.Control != nil {
		q = q.Where("control = ?", *f.Control)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}
	if !f.Since.IsZero() {
		q = q.Where("captured_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("captured_at < ?", f.Until)
	}
	q = q.Order("captured_at DESC").Order("id DESC").Limit(clampLimit(f.Limit))
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var units []models.CapturedUnit
	if err := q.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// GetUnit 按主键查询单条记录。
func (r *Repository) GetUnit(ctx context.Context, id int64) (*models.CapturedUnit, error) {
	var unit models.CapturedUnit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// CountByControl 统计 since 之后各控制字段与方向的单元数量。
func (r *Repository) CountByControl(ctx context.Context, since time.Time) ([]models.ControlCount, error) {
	q := r.db.WithContext(ctx).Model(&models.CapturedUnit{}).
		Select("control, name, direction, COUNT(*) AS total")
	if !since.IsZero() {
		q = q.Where("captured_at >= ?", since)
	}

	var counts []models.ControlCount
	err := q.Group("control, name, direction").Order("total DESC").Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ListConnections 返回最近出现过的连接标识。
func (r *Repository) ListConnections(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.CapturedUnit{}).
		Select("conn_id").
		Group("conn_id").
		Order("MAX(captured_at) DESC").
		Limit(clampLimit(limit)).
		Pluck("conn_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
