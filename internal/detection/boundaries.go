package detection

import (
	"context"
	"image"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// FrameSource 摄像头取帧边界
// 返回 (nil, nil) 表示流结束或暂时不可用，不是致命错误
type FrameSource interface {
	GetFrame(ctx context.Context) (image.Image, error)
}

// Classifier 外部分类器边界（YOLO/姿态估计，同步黑盒）
// 调用失败时该帧对所有事件类型按置信度 0 处理（fail-safe：
// 宁可漏检也不破坏状态）
type Classifier interface {
	Detect(ctx context.Context, frame image.Image) (*models.DetectionResult, error)
}

// SnapshotStore 快照存储边界
// 每次 CONFIRMED 转移都会持久化一个快照图片引用，供后续描述/审计使用
type SnapshotStore interface {
	SaveSnapshot(cameraID string, frame image.Image, eventType models.EventType, ts time.Time) (string, error)
}
