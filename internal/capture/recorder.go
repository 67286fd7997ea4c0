package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/protocol/zvt"
	"github.com/taoyao-code/zvt-tap/internal/storage"
	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

// 写入结果，对应 capture_write_total 的 result 标签
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultOpen    = "breaker_open"
)

// Recorder 异步批量落库：连接读循环只做非阻塞入队，队列满直接丢弃
type Recorder struct {
	writer  storage.CaptureWriter
	reg     *zvt.Registry
	logger  *zap.Logger
	breaker *CircuitBreaker

	queue     chan models.CapturedUnit
	workers   int
	batchSize int
	timeout   time.Duration
	keepRaw   bool

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	onResult func(result string, n int)
}

// NewRecorder 创建记录器；reg 为 nil 时使用默认指令表
func NewRecorder(w storage.CaptureWriter, cfg cfgpkg.CaptureConfig, reg *zvt.Registry, logger *zap.Logger) *Recorder {
	if reg == nil {
		reg = zvt.DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	r := &Recorder{
		writer:    w,
		reg:       reg,
		logger:    logger,
		breaker:   NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold, cfg.Breaker.Timeout),
		queue:     make(chan models.CapturedUnit, queueSize),
		workers:   workers,
		batchSize: batch,
		timeout:   timeout,
		keepRaw:   cfg.KeepRawHex,
	}
	r.breaker.SetStateChangeCallback(func(from, to State) {
		logger.Warn("capture breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
	return r
}

// SetResultCallback 写入结果回调（用于指标）
func (r *Recorder) SetResultCallback(fn func(result string, n int)) { r.onResult = fn }

// Breaker 返回存储熔断器
func (r *Recorder) Breaker() *CircuitBreaker { return r.breaker }

// QueueLen 队列中待写入条数
func (r *Recorder) QueueLen() int { return len(r.queue) }

func (r *Recorder) report(result string, n int) {
	if r.onResult != nil && n > 0 {
		r.onResult(result, n)
	}
}

// Record 入队一帧；队列满或已停止时返回 false
func (r *Recorder) Record(src Source, fr *zvt.Frame, at time.Time) bool {
	rec := FromFrame(r.reg, src, fr, at, r.keepRaw)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.queue <- rec:
		return true
	default:
		r.report(ResultDropped, 1)
		return false
	}
}

// Start 启动写入协程
func (r *Recorder) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(base)
	}
	r.logger.Info("capture recorder started",
		zap.Int("workers", r.workers),
		zap.Int("queue_size", cap(r.queue)),
		zap.Int("batch_size", r.batchSize))
}

// Stop 停止接收并等待队列写完
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("capture recorder stopped")
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	batch := make([]models.CapturedUnit, 0, r.batchSize)
	for rec := range r.queue {
		batch = append(batch[:0], rec)
	fill:
		for len(batch) < r.batchSize {
			select {
			case more, ok := <-r.queue:
				if !ok {
					break fill
				}
				batch = append(batch, more)
			default:
				break fill
			}
		}
		r.flush(ctx, batch)
	}
}

func (r *Recorder) flush(ctx context.Context, batch []models.CapturedUnit) {
	err := r.breaker.Call(func() error {
		wctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.writer.InsertUnits(wctx, batch)
	})
	switch {
	case err == nil:
		r.report(ResultOK, len(batch))
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrTooManyRequests):
		r.report(ResultOpen, len(batch))
	default:
		r.report(ResultError, len(batch))
		r.logger.Error("capture write failed", zap.Int("units", len(batch)), zap.Error(err))
	}
}
