package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/capture"
	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/metrics"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	pgstorage "github.com/taoyao-code/zvt-tap/internal/storage/pg"
)

// StartCapture 启动抓包落库与过期清理；未启用时返回 nil
func StartCapture(
	ctx context.Context,
	cfg cfgpkg.CaptureConfig,
	dbpool *pgxpool.Pool,
	reg *zvt.Registry,
	appm *metrics.AppMetrics,
	logger *zap.Logger,
) *capture.Recorder {
	if dbpool == nil || !cfg.Enable {
		logger.Info("capture recording disabled")
		return nil
	}
	repo := &pgstorage.Repository{Pool: dbpool}

	rec := capture.NewRecorder(repo, cfg, reg, logger.Named("capture"))
	rec.SetResultCallback(func(result string, n int) {
		appm.CaptureTotal.WithLabelValues(result).Add(float64(n))
	})
	rec.Breaker().SetStateChangeCallback(func(from, to capture.State) {
		logger.Warn("capture breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
	rec.Start(ctx)

	cleaner := capture.NewRetentionCleaner(repo, cfg.Retention, cfg.CleanInterval, logger.Named("retention"))
	go cleaner.Start(ctx)

	logger.Info("capture recording started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("retention", cfg.Retention))
	return rec
}
