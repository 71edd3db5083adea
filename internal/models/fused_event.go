package models

import (
	"time"
)

// FusedEvent 跨摄像头协调后的单一检测决策（一个时间窗口内最多一个）
// 由融合引擎从一个时间窗口内的一批 CameraEvent 派生；创建后不再修改
type FusedEvent struct {
	PrimaryCamera     string    `json:"primary_camera"`
	EventType         EventType `json:"event_type"`
	Confidence        float64   `json:"confidence"`
	Timestamp         time.Time `json:"timestamp"`
	FrameRef          string    `json:"frame_ref"`
	SupportingCameras []string  `json:"supporting_cameras,omitempty"`
	ConsensusScore    float64   `json:"consensus_score"` // 窗口内同意获胜类型的事件占比 [0,1]
}
