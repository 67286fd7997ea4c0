package capture

import (
	"errors"
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常写入
	StateOpen                  // 熔断，直接丢弃
	StateHalfOpen              // 半开，放少量批次试探
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 存储持续失败，写入被熔断
	ErrCircuitOpen = errors.New("capture: storage circuit open")
	// ErrTooManyRequests 半开状态试探请求已满
	ErrTooManyRequests = errors.New("capture: too many requests in half-open state")
)

// CircuitBreaker 存储写入熔断器：连续失败 threshold 次后熔断，
// timeout 后进入半开，连续成功 successThreshold 次恢复
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	inFlight      int
	lastFailTime  time.Time
	lastStateTime time.Time
	tripCount     int64

	threshold        int
	successThreshold int
	timeout          time.Duration
	halfOpenMax      int

	now           func() time.Time
	onStateChange func(from, to State)
}

// NewCircuitBreaker 创建熔断器；非正参数使用默认值
func NewCircuitBreaker(threshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	halfOpenMax := successThreshold
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}
	return &CircuitBreaker{
		state:            StateClosed,
		threshold:        threshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
		lastStateTime:    time.Now(),
	}
}

// Call 执行 fn，受熔断器保护
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.timeout {
			return ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.failureCount = 0
		cb.successCount = 0
		cb.inFlight = 1
		return nil
	case StateHalfOpen:
		if cb.inFlight >= cb.halfOpenMax {
			return ErrTooManyRequests
		}
		cb.inFlight++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	if err != nil {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++
	cb.successCount = 0
	cb.lastFailTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.threshold {
			cb.transitionTo(StateOpen)
			cb.tripCount++
		}
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
		cb.tripCount++
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transitionTo(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) transitionTo(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.lastStateTime = cb.now()
	cb.inFlight = 0
	if cb.onStateChange != nil {
		go cb.onStateChange(from, to)
	}
}

// State 当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// SetStateChangeCallback 状态变化回调（异步执行）
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset 手动恢复
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

// BreakerStats 熔断器统计信息
type BreakerStats struct {
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	TripCount       int64     `json:"trip_count"`
	LastStateChange time.Time `json:"last_state_change"`
}

// Stats 获取统计信息
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:           cb.state.String(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		TripCount:       cb.tripCount,
		LastStateChange: cb.lastStateTime,
	}
}
