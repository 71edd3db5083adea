package detection

import (
	"sync"
	"time"
)

// Stats 摄像头循环的监控指标
// 由摄像头 goroutine 独占写入，报告线程通过 GetSnapshot 读取快照，
// 避免跨线程共享可变统计字典
type Stats struct {
	mu sync.RWMutex

	FramesProcessed  int64 // 处理的帧总数
	FrameErrors      int64 // 取帧失败次数（瞬时错误）
	ClassifierErrors int64 // 分类器调用失败次数（降级为置信度 0）
	EventsConfirmed  int64 // 确认并发出的事件总数
	LastFrameAt      time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (s *Stats) GetSnapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		FramesProcessed:  s.FramesProcessed,
		FrameErrors:      s.FrameErrors,
		ClassifierErrors: s.ClassifierErrors,
		EventsConfirmed:  s.EventsConfirmed,
		LastFrameAt:      s.LastFrameAt,
	}
}

// IncrementFrame 记录一帧处理完成
func (s *Stats) IncrementFrame(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesProcessed++
	s.LastFrameAt = at
}

// IncrementFrameError 记录一次取帧失败
func (s *Stats) IncrementFrameError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FrameErrors++
}

// IncrementClassifierError 记录一次分类器失败
func (s *Stats) IncrementClassifierError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClassifierErrors++
}

// IncrementConfirmed 记录一次确认事件
func (s *Stats) IncrementConfirmed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EventsConfirmed++
}
