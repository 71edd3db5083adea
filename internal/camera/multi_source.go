package camera

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/detection"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/quality"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/selector"
)

// NamedSource 多摄像头取帧源中的一路
type NamedSource struct {
	CameraID string
	Source   detection.FrameSource
}

// MultiCameraSource 同房间多摄像头的单管线取帧源
// 每次取帧时从所有底层摄像头各拉一帧，按质量评分选出最佳一帧
// 喂给单一下游检测管线（与多管线融合模式相互独立）
type MultiCameraSource struct {
	sources  []NamedSource
	analyzer *quality.Analyzer
	selector *selector.BestFrameSelector
	logger   *zap.Logger

	// 每摄像头上一帧（运动评分需要帧差）
	prevFrames map[string]image.Image
}

// NewMultiCameraSource 创建多摄像头取帧源
// priorities: camera_id → 优先级编号（越小越优先）
func NewMultiCameraSource(sources []NamedSource, priorities map[string]int, logger *zap.Logger) *MultiCameraSource {
	return &MultiCameraSource{
		sources:    sources,
		analyzer:   quality.NewAnalyzer(),
		selector:   selector.NewBestFrameSelector(priorities, logger),
		logger:     logger,
		prevFrames: make(map[string]image.Image, len(sources)),
	}
}

// GetFrame 从所有摄像头取帧，返回质量评分最高的一帧
// 单路失败只影响该路候选；全部失败返回 nil（瞬时无帧）
func (m *MultiCameraSource) GetFrame(ctx context.Context) (image.Image, error) {
	now := time.Now()
	candidates := make([]models.CameraFrame, 0, len(m.sources))

	for _, src := range m.sources {
		frame, err := src.Source.GetFrame(ctx)
		if err != nil {
			m.logger.Debug("Camera frame fetch failed",
				zap.String("camera_id", src.CameraID),
				zap.Error(err),
			)
			continue
		}
		if frame == nil {
			continue
		}

		score := m.analyzer.Score(m.prevFrames[src.CameraID], frame)
		m.prevFrames[src.CameraID] = frame

		candidates = append(candidates, models.CameraFrame{
			CameraID:     src.CameraID,
			Frame:        frame,
			Timestamp:    now,
			QualityScore: score,
		})
	}

	best := m.selector.SelectAt(candidates, now)
	if best == nil {
		return nil, nil
	}
	return best.Frame, nil
}
