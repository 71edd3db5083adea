package fusion

import (
	"sync"
	"time"
)

// Metrics 融合引擎监控指标
type Metrics struct {
	mu sync.RWMutex

	Cycles        int64 // 融合周期总数
	EventsDrained int64 // 排空的事件总数
	EventsStale   int64 // 窗口外丢弃的事件数
	FusedEmitted  int64 // 发出的融合事件数
	GroupFailures int64 // 类型组评估失败数

	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Cycles:        m.Cycles,
		EventsDrained: m.EventsDrained,
		EventsStale:   m.EventsStale,
		FusedEmitted:  m.FusedEmitted,
		GroupFailures: m.GroupFailures,
		StartTime:     m.StartTime,
	}
}

// IncrementCycle 增加周期计数
func (m *Metrics) IncrementCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cycles++
}

// IncrementDrained 增加排空计数
func (m *Metrics) IncrementDrained() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsDrained++
}

// IncrementStale 增加过期丢弃计数
func (m *Metrics) IncrementStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsStale++
}

// IncrementFused 增加融合事件计数
func (m *Metrics) IncrementFused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FusedEmitted++
}

// IncrementGroupFailure 增加组评估失败计数
func (m *Metrics) IncrementGroupFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupFailures++
}
