package config

import (
	"os"
	"strconv"
	"time"

	common "github.com/letranminhdat1516/IPBMS-sub000/internal/common/config"
)

// Config 监控服务配置
type Config struct {
	Database common.DatabaseConfig
	Redis    common.RedisConfig
	MQTT     common.MQTTConfig

	// 检测循环配置
	Detection struct {
		HistorySize        int           // 置信度平滑历史长度（≤10）
		InterestThreshold  float64       // 进入 ACCUMULATING 的最低平滑置信度
		ConfirmationCap    int           // 确认帧计数器上限
		MotionFloor        float64       // 运动增强的最低运动水平
		SnapshotDir        string        // 确认事件快照图片目录
		FrameRetryInterval time.Duration // 取帧失败后的重试间隔

		// 每事件类型的确认帧数（高紧急类型需要更少帧）
		ConfirmFrames map[string]int
		// 每事件类型的冷却时长（易刷屏的类型更长）
		Cooldowns map[string]time.Duration
	}

	// 融合引擎配置
	Fusion struct {
		Window       time.Duration // 滑动时间窗口，默认 2秒
		PollInterval time.Duration // 融合线程轮询间隔
		// 事件类型权重（fall 和 manual_emergency 高于一般异常行为）
		TypeWeights map[string]float64
	}

	// 优先级报警门配置
	Gate struct {
		// 每事件类型的两级置信度阈值（≥High → high，≥Medium → medium，否则 low）
		SeverityThresholds map[string]SeverityThreshold
		AdmissionFloor     int // 无活跃报警时的最低准入优先级
	}

	// 报警激活通道配置
	Alarm struct {
		Channel          string        // LISTEN 通道名
		WaitTimeout      time.Duration // 等待通知的超时（保持对停止信号的响应）
		DedupCap         int           // 已处理 event_id 集合的容量上限
		DedupSweep       time.Duration // 去重集合清理周期
		ReconnectBackoff time.Duration // 连接错误后的固定退避
		AudioDuration    time.Duration // 音频自动停止时长
		Sound            string        // 警报音标识
		Mode             string        // "listen"（LISTEN/NOTIFY）或 "poll"（降级轮询）
		PollInterval     time.Duration // 降级轮询间隔
	}

	// Redis 缓存配置
	Cache struct {
		RoomKeyPrefix string // 房间实时状态缓存键前缀，如 "ipbms:room:"
		RoomSuffix    string // 实时状态缓存键后缀，如 ":realtime"
		RoomTTL       int    // 实时状态 TTL（秒）
		EventStream   string // 融合事件发布流名称
	}

	// 紧急按钮 MQTT 配置
	Emergency struct {
		Topic string // 订阅主题，如 "emergency/+/button"
	}

	Log struct {
		Level  string
		Format string
	}
}

// SeverityThreshold 两级置信度阈值
type SeverityThreshold struct {
	High   float64 // confidence >= High → high
	Medium float64 // confidence >= Medium → medium
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "ipbms")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "ipbms-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// 检测循环配置
	cfg.Detection.HistorySize = 10
	cfg.Detection.InterestThreshold = getEnvFloat("DETECTION_INTEREST_THRESHOLD", 0.3)
	cfg.Detection.ConfirmationCap = getEnvInt("DETECTION_CONFIRMATION_CAP", 30)
	cfg.Detection.MotionFloor = 0.02
	cfg.Detection.SnapshotDir = getEnv("DETECTION_SNAPSHOT_DIR", "./snapshots")
	cfg.Detection.FrameRetryInterval = 200 * time.Millisecond
	cfg.Detection.ConfirmFrames = map[string]int{
		"fall":              getEnvInt("DETECTION_CONFIRM_FRAMES_FALL", 3),
		"seizure":           getEnvInt("DETECTION_CONFIRM_FRAMES_SEIZURE", 3),
		"abnormal_behavior": getEnvInt("DETECTION_CONFIRM_FRAMES_ABNORMAL", 5),
	}
	cfg.Detection.Cooldowns = map[string]time.Duration{
		"fall":              time.Duration(getEnvInt("DETECTION_COOLDOWN_FALL_SEC", 30)) * time.Second,
		"seizure":           time.Duration(getEnvInt("DETECTION_COOLDOWN_SEIZURE_SEC", 30)) * time.Second,
		"abnormal_behavior": time.Duration(getEnvInt("DETECTION_COOLDOWN_ABNORMAL_SEC", 60)) * time.Second,
	}

	// 融合引擎配置
	cfg.Fusion.Window = time.Duration(getEnvInt("FUSION_WINDOW_MS", 2000)) * time.Millisecond
	cfg.Fusion.PollInterval = time.Duration(getEnvInt("FUSION_POLL_MS", 500)) * time.Millisecond
	cfg.Fusion.TypeWeights = map[string]float64{
		"manual_emergency":  1.2,
		"fall":              1.0,
		"seizure":           0.9,
		"abnormal_behavior": 0.6,
	}

	// 优先级报警门配置
	cfg.Gate.SeverityThresholds = map[string]SeverityThreshold{
		"fall":              {High: 0.60, Medium: 0.40},
		"seizure":           {High: 0.50, Medium: 0.30},
		"abnormal_behavior": {High: 0.70, Medium: 0.50},
		"manual_emergency":  {High: 0.0, Medium: 0.0}, // 手动触发总是 high
	}
	cfg.Gate.AdmissionFloor = getEnvInt("GATE_ADMISSION_FLOOR", 3)

	// 报警激活通道配置
	cfg.Alarm.Channel = getEnv("ALARM_CHANNEL", "alarm_activation")
	cfg.Alarm.WaitTimeout = time.Second
	cfg.Alarm.DedupCap = getEnvInt("ALARM_DEDUP_CAP", 1000)
	cfg.Alarm.DedupSweep = 5 * time.Minute
	cfg.Alarm.ReconnectBackoff = time.Duration(getEnvInt("ALARM_RECONNECT_BACKOFF_SEC", 5)) * time.Second
	cfg.Alarm.AudioDuration = time.Duration(getEnvInt("ALARM_AUDIO_DURATION_SEC", 60)) * time.Second
	cfg.Alarm.Sound = getEnv("ALARM_SOUND", "emergency.wav")
	cfg.Alarm.Mode = getEnv("ALARM_MODE", "listen")
	cfg.Alarm.PollInterval = time.Duration(getEnvInt("ALARM_POLL_SEC", 5)) * time.Second

	// Redis 缓存配置
	cfg.Cache.RoomKeyPrefix = getEnv("CACHE_ROOM_PREFIX", "ipbms:room:")
	cfg.Cache.RoomSuffix = ":realtime"
	cfg.Cache.RoomTTL = 30 // 30秒
	cfg.Cache.EventStream = getEnv("CACHE_EVENT_STREAM", "camera:events:stream")

	// 紧急按钮 MQTT 配置
	cfg.Emergency.Topic = getEnv("EMERGENCY_TOPIC", "emergency/+/button")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
