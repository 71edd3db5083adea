// Package fusion 提供多摄像头事件融合功能
//
// 主要功能：
// - 在滑动时间窗口内（默认 2秒）合并各独立摄像头循环发出的 CameraEvent
// - 按事件类型分组计算共识，通过多摄像头一致性提高置信度，
//   降低单个噪声摄像头造成的误报
// - 每个融合周期最多发出一个 FusedEvent
// - 单摄像头模式完全可用：单事件直接透传，consensus_score = 1.0
package fusion

import (
	"sort"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/queue"

	"go.uber.org/zap"
)

// typeRank 类型组平局时的固定优先顺序
// manual_emergency > fall > seizure > abnormal_behavior
var typeRank = map[models.EventType]int{
	models.EventTypeManualEmergency:  4,
	models.EventTypeFall:             3,
	models.EventTypeSeizure:          2,
	models.EventTypeAbnormalBehavior: 1,
}

// groupResult 单个类型组的评估结果
type groupResult struct {
	eventType     models.EventType
	events        []models.CameraEvent
	avgConfidence float64
	weightedScore float64
}

// Engine 事件融合引擎
type Engine struct {
	config  *config.Config
	queues  []*queue.EventQueue
	logger  *zap.Logger
	metrics *Metrics
}

// NewEngine 创建融合引擎
func NewEngine(cfg *config.Config, queues []*queue.EventQueue, logger *zap.Logger) *Engine {
	return &Engine{
		config:  cfg,
		queues:  queues,
		logger:  logger,
		metrics: &Metrics{StartTime: time.Now()},
	}
}

// Metrics 返回引擎指标
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Fuse 执行一个融合周期
//
// 算法：
// 1. 排空所有每摄像头事件队列，丢弃超出窗口的过期事件
// 2. 按 event_type 分组（每组独立评估，单组失败不影响其他组）
// 3. 计算 weighted_score = avg_confidence * type_weight * group_size
// 4. 加权得分最高的类型组获胜，平局按固定类型优先顺序
// 5. 组内个体置信度最高者为 primary_camera，其余为 supporting_cameras
// 6. consensus_score = 组大小 / 窗口内事件总数（单事件输入透传为 1.0）
//
// 空输入返回 nil（不是错误）
func (e *Engine) Fuse(now time.Time) *models.FusedEvent {
	e.metrics.IncrementCycle()

	events := e.drainWindow(now)
	if len(events) == 0 {
		return nil
	}

	// 按事件类型分组
	groups := make(map[models.EventType][]models.CameraEvent)
	for _, event := range events {
		groups[event.EventType] = append(groups[event.EventType], event)
	}

	// 每组独立评估：单组失败（panic）不阻止其他组的评估
	results := make([]groupResult, 0, len(groups))
	for eventType, group := range groups {
		if result, ok := e.evaluateGroup(eventType, group); ok {
			results = append(results, result)
		}
	}
	if len(results) == 0 {
		return nil
	}

	// 加权得分最高者获胜，平局按类型优先顺序
	sort.Slice(results, func(i, j int) bool {
		if results[i].weightedScore != results[j].weightedScore {
			return results[i].weightedScore > results[j].weightedScore
		}
		return typeRank[results[i].eventType] > typeRank[results[j].eventType]
	})
	winner := results[0]

	fused := e.buildFusedEvent(winner, len(events))
	e.metrics.IncrementFused()

	e.logger.Info("Fused event emitted",
		zap.String("event_type", string(fused.EventType)),
		zap.String("primary_camera", fused.PrimaryCamera),
		zap.Float64("confidence", fused.Confidence),
		zap.Float64("consensus_score", fused.ConsensusScore),
		zap.Int("supporting_cameras", len(fused.SupportingCameras)),
	)

	return fused
}

// drainWindow 排空所有队列并过滤掉窗口外的过期事件
func (e *Engine) drainWindow(now time.Time) []models.CameraEvent {
	var events []models.CameraEvent
	for _, q := range e.queues {
		for _, event := range q.Drain() {
			e.metrics.IncrementDrained()
			if now.Sub(event.Timestamp) > e.config.Fusion.Window {
				e.metrics.IncrementStale()
				continue
			}
			events = append(events, event)
		}
	}
	return events
}

// evaluateGroup 评估单个类型组（panic 隔离）
func (e *Engine) evaluateGroup(eventType models.EventType, group []models.CameraEvent) (result groupResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.IncrementGroupFailure()
			e.logger.Error("Group evaluation panicked, skipping group",
				zap.String("event_type", string(eventType)),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()

	var sum float64
	for _, event := range group {
		sum += event.Confidence
	}
	avg := sum / float64(len(group))

	weight, exists := e.config.Fusion.TypeWeights[string(eventType)]
	if !exists {
		weight = 1.0
	}

	return groupResult{
		eventType:     eventType,
		events:        group,
		avgConfidence: avg,
		weightedScore: avg * weight * float64(len(group)),
	}, true
}

// buildFusedEvent 从获胜组构建 FusedEvent
func (e *Engine) buildFusedEvent(winner groupResult, totalEvents int) *models.FusedEvent {
	// 组内个体置信度最高的成员为主摄像头
	primary := winner.events[0]
	for _, event := range winner.events[1:] {
		if event.Confidence > primary.Confidence {
			primary = event
		}
	}

	var supporting []string
	for _, event := range winner.events {
		if event.CameraID != primary.CameraID {
			supporting = append(supporting, event.CameraID)
		}
	}

	// 单摄像头透传：唯一输入事件的字段原样保留，consensus 1.0
	confidence := winner.avgConfidence
	consensus := float64(len(winner.events)) / float64(totalEvents)
	if totalEvents == 1 {
		confidence = primary.Confidence
		consensus = 1.0
	}

	return &models.FusedEvent{
		PrimaryCamera:     primary.CameraID,
		EventType:         winner.eventType,
		Confidence:        confidence,
		Timestamp:         primary.Timestamp,
		FrameRef:          primary.FrameRef,
		SupportingCameras: supporting,
		ConsensusScore:    consensus,
	}
}
