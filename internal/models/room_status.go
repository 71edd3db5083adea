package models

import "time"

// RoomRealtimeStatus 房间实时状态缓存条目
// 写入 Redis 供看护端界面低延迟读取，带 TTL 自动过期
type RoomRealtimeStatus struct {
	RoomID         string    `json:"room_id"`
	EventType      EventType `json:"event_type"`
	Confidence     float64   `json:"confidence"`
	ConsensusScore float64   `json:"consensus_score"`
	PrimaryCamera  string    `json:"primary_camera"`
	FrameRef       string    `json:"frame_ref,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
