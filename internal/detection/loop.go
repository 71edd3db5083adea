// Package detection 实现每摄像头检测循环和确认/冷却状态机
//
// 主要功能：
// - 拉取帧 → 调用外部分类器 → 运动感知置信度增强 → 时间平滑
// - 每（摄像头, 事件类型）一个独立的确认/冷却状态机
// - CONFIRMED 时发出一个 CameraEvent 并持久化快照引用
// - 分类器失败降级为置信度 0（fail-safe），计入统计但不崩溃循环
//
// 并发模型：每个摄像头一个 goroutine；DetectionState 和帧缓冲由
// 该 goroutine 独占，唯一的跨线程结构是事件队列
package detection

import (
	"context"
	"image"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/quality"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CameraLoop 单摄像头检测循环
type CameraLoop struct {
	cameraID   string
	config     *config.Config
	source     FrameSource
	classifier Classifier
	snapshots  SnapshotStore
	queue      *queue.EventQueue
	analyzer   *quality.Analyzer
	logger     *zap.Logger
	stats      *Stats

	// 每事件类型一个状态机，由本循环独占
	states map[models.EventType]*DetectionState
	// 上一帧（用于帧差运动水平）
	prevFrame image.Image
}

// NewCameraLoop 创建摄像头检测循环
func NewCameraLoop(
	cameraID string,
	cfg *config.Config,
	source FrameSource,
	classifier Classifier,
	snapshots SnapshotStore,
	eventQueue *queue.EventQueue,
	logger *zap.Logger,
) *CameraLoop {
	states := make(map[models.EventType]*DetectionState, len(models.AllEventTypes))
	for _, eventType := range models.AllEventTypes {
		states[eventType] = NewDetectionState(StateMachineConfig{
			InterestThreshold: cfg.Detection.InterestThreshold,
			ConfirmFrames:     cfg.Detection.ConfirmFrames[string(eventType)],
			ConfirmationCap:   cfg.Detection.ConfirmationCap,
			Cooldown:          cfg.Detection.Cooldowns[string(eventType)],
			HistorySize:       cfg.Detection.HistorySize,
		})
	}

	return &CameraLoop{
		cameraID:   cameraID,
		config:     cfg,
		source:     source,
		classifier: classifier,
		snapshots:  snapshots,
		queue:      eventQueue,
		analyzer:   quality.NewAnalyzer(),
		logger:     logger.With(zap.String("camera_id", cameraID)),
		stats:      &Stats{},
		states:     states,
	}
}

// Stats 返回循环的统计指标（供报告线程读取快照）
func (l *CameraLoop) Stats() *Stats {
	return l.stats
}

// CameraID 返回摄像头 ID
func (l *CameraLoop) CameraID() string {
	return l.cameraID
}

// Run 运行检测循环直到上下文取消
// 本循环的失败不会影响其他摄像头的循环或融合引擎
func (l *CameraLoop) Run(ctx context.Context) {
	l.logger.Info("Camera detection loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Camera detection loop stopped")
			return
		default:
		}

		frame, err := l.source.GetFrame(ctx)
		if err != nil {
			// 瞬时 I/O 错误：退避后重试，永不致命
			l.stats.IncrementFrameError()
			l.logger.Warn("Failed to get frame", zap.Error(err))
			l.wait(ctx, l.config.Detection.FrameRetryInterval)
			continue
		}
		if frame == nil {
			// 流结束或暂时不可用：视为摄像头断开，重置状态
			l.stats.IncrementFrameError()
			l.resetStates()
			l.prevFrame = nil
			l.wait(ctx, l.config.Detection.FrameRetryInterval)
			continue
		}

		l.processFrame(ctx, frame, time.Now())
		l.prevFrame = frame
	}
}

// processFrame 处理一帧：分类 → 增强 → 平滑 → 状态机 → 事件发出
func (l *CameraLoop) processFrame(ctx context.Context, frame image.Image, now time.Time) {
	// 1. 计算运动水平（缩小灰度帧对的帧差比例）
	motionLevel := l.analyzer.MotionLevel(l.prevFrame, frame)

	// 2. 调用外部分类器（失败 → 该帧全部置信度 0）
	result, err := l.classifier.Detect(ctx, frame)
	if err != nil {
		l.stats.IncrementClassifierError()
		l.logger.Warn("Classifier call failed, treating frame as zero confidence",
			zap.Error(err),
		)
		result = &models.DetectionResult{}
	}
	result.Validate()

	// 3. 每事件类型推进状态机
	for _, eventType := range models.AllEventTypes {
		state := l.states[eventType]

		enhanced := EnhanceConfidence(
			result.ConfidenceFor(eventType),
			motionLevel,
			l.config.Detection.MotionFloor,
		)

		confirmed, smoothed := state.Observe(enhanced, now)
		if !confirmed {
			continue
		}

		l.emitEvent(frame, eventType, smoothed, result, now)
	}

	l.stats.IncrementFrame(now)
}

// emitEvent 发出一个确认事件并持久化快照引用
func (l *CameraLoop) emitEvent(
	frame image.Image,
	eventType models.EventType,
	confidence float64,
	result *models.DetectionResult,
	now time.Time,
) {
	// 快照持久化失败只记录日志，事件照常发出
	frameRef, err := l.snapshots.SaveSnapshot(l.cameraID, frame, eventType, now)
	if err != nil {
		l.logger.Error("Failed to save snapshot",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}

	metadata := map[string]string{}
	if result.Detector != "" {
		metadata["detector"] = result.Detector
	}

	event := models.CameraEvent{
		EventID:    uuid.New().String(),
		CameraID:   l.cameraID,
		Timestamp:  now,
		EventType:  eventType,
		Confidence: confidence,
		FrameRef:   frameRef,
		Persons:    result.Persons,
		Metadata:   metadata,
	}

	l.queue.Push(event)
	l.stats.IncrementConfirmed()

	l.logger.Info("Detection confirmed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(eventType)),
		zap.Float64("confidence", confidence),
		zap.String("frame_ref", frameRef),
	)
}

// resetStates 重置所有事件类型的状态机（摄像头断开时）
func (l *CameraLoop) resetStates() {
	for _, state := range l.states {
		state.Reset()
	}
}

// wait 可取消的等待
func (l *CameraLoop) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
