// Package queue 提供检测管线中唯一的跨 goroutine 共享结构：
// 每摄像头一个线程安全的事件队列，由摄像头循环写入、融合线程排空
package queue

import (
	"sync"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// DefaultCapacity 默认队列容量
const DefaultCapacity = 64

// EventQueue 线程安全的有界事件队列
// 队列满时丢弃最旧的事件（过期事件对融合窗口没有价值）
type EventQueue struct {
	mu       sync.Mutex
	events   []models.CameraEvent
	capacity int
	dropped  int64
}

// NewEventQueue 创建事件队列
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventQueue{
		events:   make([]models.CameraEvent, 0, capacity),
		capacity: capacity,
	}
}

// Push 追加一个事件，容量满时丢弃最旧的事件
func (q *EventQueue) Push(event models.CameraEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) >= q.capacity {
		q.events = q.events[1:]
		q.dropped++
	}
	q.events = append(q.events, event)
}

// Drain 取出并清空当前所有事件
func (q *EventQueue) Drain() []models.CameraEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}

	drained := q.events
	q.events = make([]models.CameraEvent, 0, q.capacity)
	return drained
}

// Len 当前队列长度
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped 因容量满被丢弃的事件总数
func (q *EventQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
