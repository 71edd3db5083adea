package models

import (
	"time"
)

// EventType 检测事件类型
type EventType string

const (
	EventTypeFall             EventType = "fall"              // 跌倒
	EventTypeSeizure          EventType = "seizure"           // 癫痫发作
	EventTypeAbnormalBehavior EventType = "abnormal_behavior" // 异常行为
	EventTypeManualEmergency  EventType = "manual_emergency"  // 手动紧急呼叫（紧急按钮/移动端）
)

// AllEventTypes 所有摄像头循环需要跟踪的事件类型
// 注意：manual_emergency 不由摄像头产生，只从 MQTT 紧急按钮通道注入
var AllEventTypes = []EventType{
	EventTypeFall,
	EventTypeSeizure,
	EventTypeAbnormalBehavior,
}

// BoundingBox 检测框（像素坐标）
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PersonDetection 人体检测结果（来自外部姿态/目标检测器的不透明载荷）
// 核心层只读取 bbox 几何信息和置信度
type PersonDetection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Keypoints  []float64   `json:"keypoints,omitempty"`
}

// DetectionResult 分类器边界返回的检测结果
// 每个事件类型携带显式的可选置信度字段，在分类器边界验证一次，
// 下游代码不需要猜测字段是否存在
type DetectionResult struct {
	Fall             *float64          `json:"fall,omitempty"`              // 跌倒置信度 [0,1]
	Seizure          *float64          `json:"seizure,omitempty"`           // 癫痫置信度 [0,1]
	AbnormalBehavior *float64          `json:"abnormal_behavior,omitempty"` // 异常行为置信度 [0,1]
	Persons          []PersonDetection `json:"persons,omitempty"`
	Detector         string            `json:"detector,omitempty"` // 分类器使用的方法标识（用于审计）
}

// ConfidenceFor 获取指定事件类型的置信度（缺失返回 0）
func (r *DetectionResult) ConfidenceFor(eventType EventType) float64 {
	var p *float64
	switch eventType {
	case EventTypeFall:
		p = r.Fall
	case EventTypeSeizure:
		p = r.Seizure
	case EventTypeAbnormalBehavior:
		p = r.AbnormalBehavior
	}
	if p == nil {
		return 0
	}
	return *p
}

// Validate 在分类器边界验证一次：置信度裁剪到 [0,1]
func (r *DetectionResult) Validate() {
	clamp := func(p *float64) {
		if p == nil {
			return
		}
		if *p < 0 {
			*p = 0
		}
		if *p > 1 {
			*p = 1
		}
	}
	clamp(r.Fall)
	clamp(r.Seizure)
	clamp(r.AbnormalBehavior)
}

// CameraEvent 单个摄像头在一个融合周期内确认的检测输出
// 由唯一的摄像头循环产生；创建后不可变；被融合引擎消费一次或过期丢弃
type CameraEvent struct {
	EventID    string            `json:"event_id"`
	CameraID   string            `json:"camera_id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  EventType         `json:"event_type"`
	Confidence float64           `json:"confidence"`
	FrameRef   string            `json:"frame_ref"` // 快照图片引用（用于后续描述/审计）
	Persons    []PersonDetection `json:"persons,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
