package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/audio"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/common/database"
	mqttcommon "github.com/letranminhdat1516/IPBMS-sub000/internal/common/mqtt"
	rediscommon "github.com/letranminhdat1516/IPBMS-sub000/internal/common/redis"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/consumer"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/detection"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/fusion"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/gate"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/listener"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/queue"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/repository"
)

// 摄像头无帧告警阈值与检查周期
const (
	livenessCheckInterval = 30 * time.Second
	livenessStaleAfter    = 10 * time.Second
)

// CameraRegistration 一路摄像头的接入信息
type CameraRegistration struct {
	CameraID   string
	RoomID     string
	UserID     string
	Source     detection.FrameSource
	Classifier detection.Classifier
}

// MonitorService 摄像头监护服务
// 组装检测循环、融合引擎、报警门、报警监听与缓存发布
type MonitorService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	eventsRepo *repository.DetectionEventsRepository
	alertsRepo *repository.AlertsRepository

	loops         []*detection.CameraLoop
	fusionEngine  *fusion.Engine
	alertGate     *gate.Gate
	cacheManager  *consumer.CacheManager
	emergency     *consumer.EmergencyConsumer
	alarmSource   listener.Source
	alarmListener *listener.AlarmListener

	// 摄像头 → 房间 / 房间 → 用户
	roomByCamera map[string]string
	userByRoom   map[string]string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService 创建监护服务
func NewMonitorService(cfg *config.Config, cameras []CameraRegistration, logger *zap.Logger) (*MonitorService, error) {
	if len(cameras) == 0 {
		return nil, fmt.Errorf("at least one camera registration is required")
	}

	// 1. 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 3. 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}

	// 4. 创建Repository
	eventsRepo := repository.NewDetectionEventsRepository(db, logger)
	alertsRepo := repository.NewAlertsRepository(db, logger)

	// 5. 创建快照存储
	snapshots, err := detection.NewFileSnapshotStore(cfg.Detection.SnapshotDir)
	if err != nil {
		db.Close()
		redisClient.Close()
		mqttClient.Disconnect()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	// 6. 每路摄像头一个事件队列和检测循环
	roomByCamera := make(map[string]string, len(cameras))
	userByRoom := make(map[string]string, len(cameras))
	queues := make([]*queue.EventQueue, 0, len(cameras)+1)
	loops := make([]*detection.CameraLoop, 0, len(cameras))
	for _, cam := range cameras {
		roomByCamera[cam.CameraID] = cam.RoomID
		userByRoom[cam.RoomID] = cam.UserID

		q := queue.NewEventQueue(queue.DefaultCapacity)
		queues = append(queues, q)
		loops = append(loops, detection.NewCameraLoop(
			cam.CameraID, cfg, cam.Source, cam.Classifier, snapshots, q, logger,
		))
	}

	// 7. 紧急按钮事件走独立队列，与摄像头事件一起进融合
	emergencyQueue := queue.NewEventQueue(queue.DefaultCapacity)
	queues = append(queues, emergencyQueue)

	// 8. 创建融合引擎和报警门
	fusionEngine := fusion.NewEngine(cfg, queues, logger)
	alertGate := gate.NewGate(cfg, eventsRepo, alertsRepo, logger)

	// 9. 创建缓存管理器和紧急按钮消费者
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	emergency := consumer.NewEmergencyConsumer(cfg, mqttClient, emergencyQueue, logger)

	// 10. 创建报警通知来源（LISTEN/NOTIFY 或降级轮询）
	var alarmSource listener.Source
	if cfg.Alarm.Mode == "poll" {
		alarmSource = listener.NewPollSource(eventsRepo, cfg.Alarm.PollInterval, logger)
	} else {
		alarmSource, err = listener.NewPQSource(
			cfg.Database.GetDSN(), cfg.Alarm.Channel, cfg.Alarm.ReconnectBackoff, logger,
		)
		if err != nil {
			db.Close()
			redisClient.Close()
			mqttClient.Disconnect()
			return nil, fmt.Errorf("failed to create alarm source: %w", err)
		}
	}

	// 11. 创建报警监听线程
	player := audio.NewExecPlayer("", logger)
	alarmListener := listener.NewAlarmListener(listener.Config{
		WaitTimeout:      cfg.Alarm.WaitTimeout,
		DedupCap:         cfg.Alarm.DedupCap,
		DedupSweep:       cfg.Alarm.DedupSweep,
		ReconnectBackoff: cfg.Alarm.ReconnectBackoff,
		AudioDuration:    cfg.Alarm.AudioDuration,
		Sound:            cfg.Alarm.Sound,
	}, alarmSource, eventsRepo, player, logger)

	return &MonitorService{
		config:        cfg,
		logger:        logger,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		eventsRepo:    eventsRepo,
		alertsRepo:    alertsRepo,
		loops:         loops,
		fusionEngine:  fusionEngine,
		alertGate:     alertGate,
		cacheManager:  cacheManager,
		emergency:     emergency,
		alarmSource:   alarmSource,
		alarmListener: alarmListener,
		roomByCamera:  roomByCamera,
		userByRoom:    userByRoom,
	}, nil
}

// Start 启动所有组件
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting camera monitor service components",
		zap.Int("cameras", len(s.loops)),
		zap.String("alarm_mode", s.config.Alarm.Mode),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// 摄像头检测循环
	for _, loop := range s.loops {
		loop := loop
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			loop.Run(runCtx)
		}()
	}

	// 融合 + 报警门线程
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFusion(runCtx)
	}()

	// 紧急按钮消费者
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.emergency.Start(runCtx); err != nil {
			s.logger.Error("Emergency consumer exited", zap.Error(err))
		}
	}()

	// 报警监听线程
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.alarmListener.Run(runCtx)
	}()

	// 摄像头存活与指标报告
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runReporter(runCtx)
	}()

	s.logger.Info("Camera monitor service started successfully")
	return nil
}

// runFusion 融合线程：按固定周期做一轮融合，产出送报警门并发布缓存
func (s *MonitorService) runFusion(ctx context.Context) {
	ticker := time.NewTicker(s.config.Fusion.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fused := s.fusionEngine.Fuse(time.Now())
		if fused == nil {
			continue
		}

		roomID, userID := s.resolve(fused.PrimaryCamera)
		if userID == "" {
			s.logger.Warn("No user mapping for camera, event dropped",
				zap.String("camera_id", fused.PrimaryCamera),
			)
			continue
		}

		result, err := s.alertGate.Process(ctx, userID, fused)
		if err != nil {
			s.logger.Error("Alert gate processing failed",
				zap.String("camera_id", fused.PrimaryCamera),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("Fused event processed",
			zap.String("event_type", string(fused.EventType)),
			zap.String("primary_camera", fused.PrimaryCamera),
			zap.Float64("confidence", fused.Confidence),
			zap.Bool("alert_created", result.AlertCreated),
		)

		// 缓存与流发布失败不影响报警主链路
		if err := s.cacheManager.UpdateRoomStatus(ctx, roomID, fused); err != nil {
			s.logger.Warn("Failed to update room status cache", zap.Error(err))
		}
		if err := s.cacheManager.PublishFusedEvent(ctx, fused); err != nil {
			s.logger.Warn("Failed to publish fused event", zap.Error(err))
		}
	}
}

// resolve 把主摄像头映射到房间与用户
// 紧急按钮事件的 camera_id 形如 "button:{room_id}"
func (s *MonitorService) resolve(cameraID string) (roomID, userID string) {
	if rest, ok := strings.CutPrefix(cameraID, "button:"); ok {
		roomID = rest
	} else {
		roomID = s.roomByCamera[cameraID]
	}
	return roomID, s.userByRoom[roomID]
}

// runReporter 周期性报告各摄像头指标并告警长时间无帧的摄像头
func (s *MonitorService) runReporter(ctx context.Context) {
	ticker := time.NewTicker(livenessCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, loop := range s.loops {
			snapshot := loop.Stats().GetSnapshot()
			s.logger.Info("Camera loop stats",
				zap.String("camera_id", loop.CameraID()),
				zap.Int64("frames_processed", snapshot.FramesProcessed),
				zap.Int64("frame_errors", snapshot.FrameErrors),
				zap.Int64("classifier_errors", snapshot.ClassifierErrors),
				zap.Int64("events_confirmed", snapshot.EventsConfirmed),
			)

			if !snapshot.LastFrameAt.IsZero() && time.Since(snapshot.LastFrameAt) > livenessStaleAfter {
				s.logger.Warn("Camera not delivering frames",
					zap.String("camera_id", loop.CameraID()),
					zap.Time("last_frame_at", snapshot.LastFrameAt),
				)
			}
		}

		fm := s.fusionEngine.Metrics().GetSnapshot()
		s.logger.Info("Fusion engine stats",
			zap.Int64("cycles", fm.Cycles),
			zap.Int64("events_drained", fm.EventsDrained),
			zap.Int64("events_stale", fm.EventsStale),
			zap.Int64("fused_emitted", fm.FusedEmitted),
			zap.Int64("group_failures", fm.GroupFailures),
		)
	}
}

// Stop 停止服务并释放资源
func (s *MonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping camera monitor service")

	if s.cancel != nil {
		s.cancel()
	}
	if err := s.emergency.Stop(ctx); err != nil {
		s.logger.Error("Error stopping emergency consumer", zap.Error(err))
	}
	s.wg.Wait()

	if err := s.alarmSource.Close(); err != nil {
		s.logger.Error("Error closing alarm source", zap.Error(err))
	}

	s.mqttClient.Disconnect()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Camera monitor service stopped")
	return nil
}
