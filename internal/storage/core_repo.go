package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("storage: not found")

// CaptureWriter 抓包记录写入（热路径，pgx 批量插入）
type CaptureWriter interface {
	InsertUnits(ctx context.Context, units []models.CapturedUnit) error
}

// CaptureFilter 抓包查询条件；零值字段不参与过滤
type CaptureFilter struct {
	ConnID    string
	Control   *int32
	Direction string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// CaptureReader 抓包记录查询（API 只读路径）
type CaptureReader interface {
	ListUnits(ctx context.Context, f CaptureFilter) ([]models.CapturedUnit, error)
	GetUnit(ctx context.Context, id int64) (*models.CapturedUnit, error)
	CountByControl(ctx context.Context, since time.Time) ([]models.ControlCount, error)
	ListConnections(ctx context.Context, limit int) ([]string, error)
}
