package models

import (
	"time"
)

// Severity 报警严重级别
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertStatus 报警状态
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// LifecycleState 事件记录的生命周期状态（用于报警激活通道）
// 状态机：NOTIFIED → ALARM_ACTIVATED（外部 UPDATE 触发）→ ACKED | CANCELED
type LifecycleState string

const (
	LifecycleNotified       LifecycleState = "NOTIFIED"
	LifecycleAlarmActivated LifecycleState = "ALARM_ACTIVATED"
	LifecycleAcked          LifecycleState = "ACKED"
	LifecycleCanceled       LifecycleState = "CANCELED"
)

// Alert 报警记录（对应 alerts 表）
// 由优先级报警门创建；acknowledge/resolve 由下游确认流程修改
type Alert struct {
	AlertID       string      `json:"alert_id" db:"alert_id"`
	EventID       string      `json:"event_id" db:"event_id"`
	UserID        string      `json:"user_id" db:"user_id"`
	Severity      Severity    `json:"severity" db:"severity"`
	PriorityLevel int         `json:"priority_level" db:"priority_level"`
	Status        AlertStatus `json:"status" db:"status"`
	Message       string      `json:"message" db:"message"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// DetectionEvent 检测事件记录（对应 detection_events 表，审计用）
// 即使报警被抑制，事件记录也总是写入
type DetectionEvent struct {
	EventID        string         `json:"event_id" db:"event_id"`
	UserID         string         `json:"user_id" db:"user_id"`
	CameraID       string         `json:"camera_id" db:"camera_id"`
	EventType      EventType      `json:"event_type" db:"event_type"`
	Confidence     float64        `json:"confidence" db:"confidence"`
	ConsensusScore float64        `json:"consensus_score" db:"consensus_score"`
	FrameRef       string         `json:"frame_ref" db:"frame_ref"`
	Lifecycle      LifecycleState `json:"lifecycle" db:"lifecycle"`
	DetectedAt     time.Time      `json:"detected_at" db:"detected_at"`
	Metadata       string         `json:"metadata" db:"metadata"` // JSONB
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// AlarmNotification LISTEN/NOTIFY 通道的 JSON 载荷
// 生产者是数据库触发器（UPDATE 语句触发），消费者是报警监听线程
type AlarmNotification struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	State   string `json:"state"` // "ALARM_ACTIVATED"
	Message string `json:"message"`
}
