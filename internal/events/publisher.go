package events

import (
	"context"
	"errors"
)

// Publisher 单元事件发布端
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev *UnitEvent) error
	Close() error
}

// 发布结果，对应 events_publish_total 的 result 标签
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Multi 依次发布到多个发布端，单个失败不影响其他
type Multi struct {
	sinks    []Publisher
	onResult func(sink, result string)
}

// NewMulti nil 发布端会被忽略
func NewMulti(sinks ...Publisher) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// SetResultCallback 发布结果回调（用于指标）
func (m *Multi) SetResultCallback(fn func(sink, result string)) { m.onResult = fn }

// Len 发布端数量
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Name() string { return "multi" }

// Publish 返回所有失败的合并错误
func (m *Multi) Publish(ctx context.Context, ev *UnitEvent) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Publish(ctx, ev)
		result := ResultOK
		if err != nil {
			result = ResultError
			errs = append(errs, err)
		}
		if m.onResult != nil {
			m.onResult(s.Name(), result)
		}
	}
	return errors.Join(errs...)
}

// Close 关闭全部发布端
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
