package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// Notification 报警通道收到的一条原始通知
type Notification struct {
	Payload string
}

// Source 报警通知来源
// 生产实现基于 Postgres LISTEN/NOTIFY，降级实现基于数据库轮询
// 测试注入假实现
type Source interface {
	// Notifications 返回通知通道；来源重连时可能收到 nil
	Notifications() <-chan *Notification
	// Ping 检查底层连接是否存活
	Ping() error
	// Close 关闭来源
	Close() error
}

// PQSource 基于 pq.Listener 的 LISTEN/NOTIFY 来源
// pq.Listener 内部自动重连；重连后会向 Notify 通道投递 nil
type PQSource struct {
	listener *pq.Listener
	out      chan *Notification
	logger   *zap.Logger
}

// NewPQSource 创建 LISTEN/NOTIFY 来源
// 使用独立的数据库连接（不占用连接池），订阅指定通道
func NewPQSource(dsn, channel string, reconnectBackoff time.Duration, logger *zap.Logger) (*PQSource, error) {
	// 1. 建立专用监听连接
	pl := pq.NewListener(dsn, reconnectBackoff, reconnectBackoff*6,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("Listener connection event",
					zap.Int("event", int(ev)),
					zap.Error(err),
				)
			}
		})

	// 2. 订阅报警通道
	if err := pl.Listen(channel); err != nil {
		pl.Close()
		return nil, err
	}

	s := &PQSource{
		listener: pl,
		out:      make(chan *Notification),
		logger:   logger,
	}

	// 3. 转发通知
	go s.pump()

	logger.Info("Alarm channel subscribed", zap.String("channel", channel))
	return s, nil
}

func (s *PQSource) pump() {
	defer close(s.out)
	for n := range s.listener.Notify {
		if n == nil {
			// 重连标记，透传给监听循环触发 Ping
			s.out <- nil
			continue
		}
		s.out <- &Notification{Payload: n.Extra}
	}
}

// Notifications 返回通知通道
func (s *PQSource) Notifications() <-chan *Notification {
	return s.out
}

// Ping 检查监听连接
func (s *PQSource) Ping() error {
	return s.listener.Ping()
}

// Close 关闭监听连接
func (s *PQSource) Close() error {
	return s.listener.Close()
}

// ActivatedEventStore 轮询来源需要的查询接口
type ActivatedEventStore interface {
	GetActivatedEvents(ctx context.Context, limit int) ([]models.DetectionEvent, error)
}

// PollSource 降级轮询来源
// 周期性查询 ALARM_ACTIVATED 状态的事件，合成通知载荷
// 重复投递由监听循环的去重集合吸收
type PollSource struct {
	store    ActivatedEventStore
	interval time.Duration
	out      chan *Notification
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewPollSource 创建轮询来源
func NewPollSource(store ActivatedEventStore, interval time.Duration, logger *zap.Logger) *PollSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PollSource{
		store:    store,
		interval: interval,
		out:      make(chan *Notification),
		cancel:   cancel,
		logger:   logger,
	}
	go s.poll(ctx)
	return s
}

func (s *PollSource) poll(ctx context.Context) {
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		events, err := s.store.GetActivatedEvents(ctx, 100)
		if err != nil {
			s.logger.Warn("Failed to poll activated events", zap.Error(err))
			continue
		}

		for _, event := range events {
			payload, err := json.Marshal(models.AlarmNotification{
				EventID: event.EventID,
				UserID:  event.UserID,
				State:   string(models.LifecycleAlarmActivated),
				Message: string(event.EventType),
			})
			if err != nil {
				continue
			}
			select {
			case s.out <- &Notification{Payload: string(payload)}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Notifications 返回通知通道
func (s *PollSource) Notifications() <-chan *Notification {
	return s.out
}

// Ping 轮询来源无持久连接
func (s *PollSource) Ping() error {
	return nil
}

// Close 停止轮询
func (s *PollSource) Close() error {
	s.cancel()
	return nil
}
