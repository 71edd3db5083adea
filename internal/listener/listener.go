package listener

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/audio"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// Config 报警监听配置
type Config struct {
	WaitTimeout      time.Duration // 单次等待通知的超时
	DedupCap         int           // 已处理 event_id 集合容量
	DedupSweep       time.Duration // 去重集合清理周期
	ReconnectBackoff time.Duration // 来源异常后的固定退避
	AudioDuration    time.Duration // 音频自动停止时长
	Sound            string        // 警报音标识
}

// EventStore 监听线程写回终态的接口
type EventStore interface {
	UpdateLifecycleState(ctx context.Context, eventID string, state models.LifecycleState) error
}

// AlarmListener 报警激活监听线程
// 消费报警通道的通知：去重 → 播放警报音 → 写回事件终态
// 通知来源（LISTEN/NOTIFY 或轮询）由 Source 抽象
type AlarmListener struct {
	config Config
	source Source
	store  EventStore
	player audio.Player
	logger *zap.Logger

	// 已处理的 event_id 集合（带插入时间，周期清理）
	processed map[string]time.Time
}

// NewAlarmListener 创建报警监听线程
func NewAlarmListener(cfg Config, source Source, store EventStore, player audio.Player, logger *zap.Logger) *AlarmListener {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = time.Second
	}
	if cfg.DedupCap <= 0 {
		cfg.DedupCap = 1000
	}
	if cfg.DedupSweep <= 0 {
		cfg.DedupSweep = 5 * time.Minute
	}
	return &AlarmListener{
		config:    cfg,
		source:    source,
		store:     store,
		player:    player,
		logger:    logger,
		processed: make(map[string]time.Time),
	}
}

// Run 监听循环，阻塞直到 ctx 取消
// 来源异常时固定退避后继续，永不因错误退出
func (l *AlarmListener) Run(ctx context.Context) {
	l.logger.Info("Alarm listener started")

	lastSweep := time.Now()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Alarm listener stopped")
			return

		case n, ok := <-l.source.Notifications():
			if !ok {
				// 来源关闭，退避后继续等待 ctx 取消或来源恢复
				if !l.wait(ctx, l.config.ReconnectBackoff) {
					return
				}
				continue
			}
			if n == nil {
				// 来源重连标记，确认连接存活
				if err := l.source.Ping(); err != nil {
					l.logger.Warn("Alarm source ping failed", zap.Error(err))
					if !l.wait(ctx, l.config.ReconnectBackoff) {
						return
					}
				}
				continue
			}
			l.handleNotification(ctx, n.Payload)

		case <-time.After(l.config.WaitTimeout):
			// 空闲超时，保持对停止信号的响应；顺带检查连接
			if err := l.source.Ping(); err != nil {
				l.logger.Warn("Alarm source ping failed", zap.Error(err))
				if !l.wait(ctx, l.config.ReconnectBackoff) {
					return
				}
			}
		}

		if time.Since(lastSweep) >= l.config.DedupSweep {
			l.sweep()
			lastSweep = time.Now()
		}
	}
}

// handleNotification 处理一条通知载荷
func (l *AlarmListener) handleNotification(ctx context.Context, payload string) {
	var notification models.AlarmNotification
	if err := json.Unmarshal([]byte(payload), &notification); err != nil {
		l.logger.Warn("Malformed alarm notification dropped",
			zap.String("payload", payload),
			zap.Error(err),
		)
		return
	}

	if notification.EventID == "" {
		l.logger.Warn("Alarm notification missing event_id, dropped")
		return
	}
	if notification.State != string(models.LifecycleAlarmActivated) {
		l.logger.Debug("Ignoring non-activation notification",
			zap.String("event_id", notification.EventID),
			zap.String("state", notification.State),
		)
		return
	}

	// 去重：同一 event_id 只激活一次
	if _, seen := l.processed[notification.EventID]; seen {
		l.logger.Debug("Duplicate alarm notification ignored",
			zap.String("event_id", notification.EventID),
		)
		return
	}
	l.remember(notification.EventID)

	l.activate(ctx, &notification)
}

// activate 执行一次报警激活：播放音频并写回终态
func (l *AlarmListener) activate(ctx context.Context, notification *models.AlarmNotification) {
	l.logger.Info("Alarm activated",
		zap.String("event_id", notification.EventID),
		zap.String("user_id", notification.UserID),
		zap.String("message", notification.Message),
	)

	handle, err := l.player.PlayLoop(l.config.Sound)
	if err != nil {
		l.logger.Error("Failed to start alarm audio",
			zap.String("event_id", notification.EventID),
			zap.Error(err),
		)
		l.writeTerminalState(ctx, notification.EventID, models.LifecycleCanceled)
		return
	}

	// 自动停止定时器
	eventID := notification.EventID
	time.AfterFunc(l.config.AudioDuration, func() {
		if err := l.player.Stop(handle); err != nil {
			l.logger.Warn("Failed to stop alarm audio",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	})

	l.writeTerminalState(ctx, notification.EventID, models.LifecycleAcked)
}

func (l *AlarmListener) writeTerminalState(ctx context.Context, eventID string, state models.LifecycleState) {
	if err := l.store.UpdateLifecycleState(ctx, eventID, state); err != nil {
		l.logger.Error("Failed to update lifecycle state",
			zap.String("event_id", eventID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}

// remember 记录已处理的 event_id，超过容量时淘汰最旧的
func (l *AlarmListener) remember(eventID string) {
	if len(l.processed) >= l.config.DedupCap {
		var oldestID string
		var oldestAt time.Time
		for id, at := range l.processed {
			if oldestID == "" || at.Before(oldestAt) {
				oldestID = id
				oldestAt = at
			}
		}
		delete(l.processed, oldestID)
	}
	l.processed[eventID] = time.Now()
}

// sweep 清理超过清理周期的旧条目
func (l *AlarmListener) sweep() {
	cutoff := time.Now().Add(-l.config.DedupSweep)
	removed := 0
	for id, at := range l.processed {
		if at.Before(cutoff) {
			delete(l.processed, id)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("Dedup set swept", zap.Int("removed", removed))
	}
}

func (l *AlarmListener) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
