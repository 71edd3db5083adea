// Package gate 实现优先级报警准入控制
//
// 将 FusedEvent 映射为严重级别和优先级数字，根据用户当前活跃报警的
// 最高优先级决定是否创建新报警记录：在防止报警风暴的同时，
// 保证升级的严重事件永不被抑制（准入控制/背压模式，而非简单冷却计时）
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 严重级别对应的基础优先级
var basePriority = map[models.Severity]int{
	models.SeverityHigh:   4,
	models.SeverityMedium: 3,
	models.SeverityLow:    2,
}

// EventStore 检测事件持久化边界
type EventStore interface {
	CreateDetectionEvent(ctx context.Context, event *models.DetectionEvent) error
}

// AlertStore 报警记录持久化边界
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	// GetMaxActivePriority 返回用户活跃报警中的最高优先级
	// hasActive 为 false 表示该用户当前没有活跃报警
	GetMaxActivePriority(ctx context.Context, userID string) (maxPriority int, hasActive bool, err error)
}

// Result 准入决策结果
type Result struct {
	Event        *models.DetectionEvent // 总是写入的审计事件记录
	Alert        *models.Alert          // 准入时创建的报警（被抑制时为 nil）
	AlertCreated bool
}

// Gate 优先级报警门
type Gate struct {
	config *config.Config
	events EventStore
	alerts AlertStore
	logger *zap.Logger

	// "读当前最高优先级 → 决策 → 写入" 是每用户的临界区：
	// 避免两个并发融合事件同时通过准入检查
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewGate 创建优先级报警门
func NewGate(cfg *config.Config, events EventStore, alerts AlertStore, logger *zap.Logger) *Gate {
	return &Gate{
		config:    cfg,
		events:    events,
		alerts:    alerts,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// SeverityFor 按事件类型的两级阈值表将置信度映射为严重级别
func (g *Gate) SeverityFor(eventType models.EventType, confidence float64) models.Severity {
	threshold, ok := g.config.Gate.SeverityThresholds[string(eventType)]
	if !ok {
		// 未配置的类型使用保守默认阈值
		threshold = config.SeverityThreshold{High: 0.7, Medium: 0.5}
	}

	switch {
	case confidence >= threshold.High:
		return models.SeverityHigh
	case confidence >= threshold.Medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// PriorityLevel 计算优先级数字
// 基础优先级 high=4, medium=3, low=2；acknowledged 减 2（不低于 0）；resolved 为 0
func PriorityLevel(severity models.Severity, status models.AlertStatus) int {
	if status == models.AlertStatusResolved {
		return 0
	}

	priority := basePriority[severity]
	if status == models.AlertStatusAcknowledged {
		priority -= 2
		if priority < 0 {
			priority = 0
		}
	}
	return priority
}

// Process 处理一个融合事件：审计事件总是写入，报警按准入规则创建
//
// 准入规则：new_priority ≥ 用户当前活跃报警的最高优先级时创建；
// 没有活跃报警时额外要求 new_priority 清过最低门槛
// （抑制无事发生时的孤立低严重度噪声）
func (g *Gate) Process(ctx context.Context, userID string, fused *models.FusedEvent) (*Result, error) {
	severity := g.SeverityFor(fused.EventType, fused.Confidence)
	newPriority := PriorityLevel(severity, models.AlertStatusActive)

	// 审计事件记录总是写入，即使报警被抑制
	event := &models.DetectionEvent{
		EventID:        uuid.New().String(),
		UserID:         userID,
		CameraID:       fused.PrimaryCamera,
		EventType:      fused.EventType,
		Confidence:     fused.Confidence,
		ConsensusScore: fused.ConsensusScore,
		FrameRef:       fused.FrameRef,
		Lifecycle:      models.LifecycleNotified,
		DetectedAt:     fused.Timestamp,
		Metadata:       "{}",
	}
	if err := g.events.CreateDetectionEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create detection event: %w", err)
	}

	// 每用户临界区：序列化检查-写入序列
	lock := g.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	maxPriority, hasActive, err := g.alerts.GetMaxActivePriority(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get max active priority: %w", err)
	}

	admitted := false
	if hasActive {
		admitted = newPriority >= maxPriority
	} else {
		admitted = newPriority >= g.config.Gate.AdmissionFloor
	}

	if !admitted {
		g.logger.Info("Alert suppressed by priority gate",
			zap.String("user_id", userID),
			zap.String("event_type", string(fused.EventType)),
			zap.Int("new_priority", newPriority),
			zap.Int("current_max_priority", maxPriority),
			zap.Bool("has_active", hasActive),
		)
		return &Result{Event: event}, nil
	}

	alert := &models.Alert{
		AlertID:       uuid.New().String(),
		EventID:       event.EventID,
		UserID:        userID,
		Severity:      severity,
		PriorityLevel: newPriority,
		Status:        models.AlertStatusActive,
		Message: fmt.Sprintf("%s detected by %s (confidence %.2f, consensus %.2f)",
			fused.EventType, fused.PrimaryCamera, fused.Confidence, fused.ConsensusScore),
		CreatedAt: time.Now(),
	}
	if err := g.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	g.logger.Info("Alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("user_id", userID),
		zap.String("severity", string(severity)),
		zap.Int("priority_level", newPriority),
	)

	return &Result{Event: event, Alert: alert, AlertCreated: true}, nil
}

// lockFor 获取用户的准入锁
func (g *Gate) lockFor(userID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.userLocks[userID] = lock
	}
	return lock
}
