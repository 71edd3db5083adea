// Package selector 提供多摄像头单管线模式下的最佳帧选择
//
// 当 ≥2 个摄像头覆盖同一房间时，每个 tick 从各摄像头的候选帧中
// 选出一帧喂给单一下游管线（与多管线融合模式相互独立）
package selector

import (
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"go.uber.org/zap"
)

const (
	// 综合评分权重：quality 0.6 + camera_priority 0.3 + recency 0.1
	qualityWeight  = 0.6
	priorityWeight = 0.3
	recencyWeight  = 0.1

	// 超过该时长的帧直接排除
	maxStaleness = time.Second
)

// BestFrameSelector 最佳帧选择器
type BestFrameSelector struct {
	// 每摄像头的优先级编号（数字越小优先级越高，1 为配置的主摄像头）
	priorities map[string]int
	logger     *zap.Logger
}

// NewBestFrameSelector 创建最佳帧选择器
// priorities: camera_id → 优先级编号（越小越优先）
func NewBestFrameSelector(priorities map[string]int, logger *zap.Logger) *BestFrameSelector {
	return &BestFrameSelector{
		priorities: priorities,
		logger:     logger,
	}
}

// Select 从候选帧中选出综合评分最高的一帧
//
// composite = 0.6*quality_score + 0.3*priority_weight + 0.1*recency_score
// - recency 在 1 秒内线性衰减到 0，超过 1 秒的帧直接排除
// - 评分相同时优先级编号更小的摄像头获胜（配置的主摄像头优先）
// - 没有新鲜帧时返回 nil
func (s *BestFrameSelector) Select(frames []models.CameraFrame) *models.CameraFrame {
	return s.SelectAt(frames, time.Now())
}

// SelectAt 以指定的当前时间进行选择（便于测试）
func (s *BestFrameSelector) SelectAt(frames []models.CameraFrame, now time.Time) *models.CameraFrame {
	var best *models.CameraFrame
	var bestScore float64

	for i := range frames {
		frame := &frames[i]

		age := now.Sub(frame.Timestamp)
		if age < 0 {
			age = 0
		}
		// 超过 1 秒的帧视为过期
		if age >= maxStaleness {
			continue
		}

		recency := 1 - float64(age)/float64(maxStaleness)
		score := qualityWeight*frame.QualityScore +
			priorityWeight*s.priorityWeightFor(frame.CameraID) +
			recencyWeight*recency

		if best == nil || score > bestScore {
			best = frame
			bestScore = score
			continue
		}
		// 平局：优先级编号更小的摄像头获胜
		if score == bestScore && s.priorityFor(frame.CameraID) < s.priorityFor(best.CameraID) {
			best = frame
		}
	}

	if best == nil {
		s.logger.Debug("No fresh frame available for selection",
			zap.Int("candidates", len(frames)),
		)
		return nil
	}

	return best
}

// priorityFor 获取摄像头的优先级编号（未配置的摄像头排在最后）
func (s *BestFrameSelector) priorityFor(cameraID string) int {
	if p, ok := s.priorities[cameraID]; ok {
		return p
	}
	return int(^uint(0) >> 1)
}

// priorityWeightFor 将优先级编号归一化为 [0,1] 权重
// 编号 1 → 1.0，编号 2 → 0.5，编号 n → 1/n
func (s *BestFrameSelector) priorityWeightFor(cameraID string) float64 {
	p := s.priorityFor(cameraID)
	if p < 1 {
		p = 1
	}
	return 1 / float64(p)
}
