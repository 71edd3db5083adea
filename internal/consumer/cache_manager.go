package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "github.com/letranminhdat1516/IPBMS-sub000/internal/common/redis"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// CacheManager Redis 缓存管理器
// 维护房间实时状态缓存，并把融合事件发布到 Redis Streams 供下游消费
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// roomKey 构建房间实时状态缓存键
func (c *CacheManager) roomKey(roomID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.RoomKeyPrefix,
		roomID,
		c.config.Cache.RoomSuffix,
	)
}

// UpdateRoomStatus 写入房间实时状态（设置 TTL）
func (c *CacheManager) UpdateRoomStatus(ctx context.Context, roomID string, event *models.FusedEvent) error {
	status := models.RoomRealtimeStatus{
		RoomID:         roomID,
		EventType:      event.EventType,
		Confidence:     event.Confidence,
		ConsensusScore: event.ConsensusScore,
		PrimaryCamera:  event.PrimaryCamera,
		FrameRef:       event.FrameRef,
		UpdatedAt:      time.Now(),
	}

	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal room status: %w", err)
	}

	key := c.roomKey(roomID)
	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Cache.RoomTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set room status cache: %w", err)
	}

	c.logger.Debug("Updated room status cache",
		zap.String("room_id", roomID),
		zap.String("key", key),
		zap.String("event_type", string(event.EventType)),
	)

	return nil
}

// GetRoomStatus 读取房间实时状态
func (c *CacheManager) GetRoomStatus(ctx context.Context, roomID string) (*models.RoomRealtimeStatus, error) {
	key := c.roomKey(roomID)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("room status not found: %s", roomID)
		}
		return nil, fmt.Errorf("failed to get room status cache: %w", err)
	}

	var status models.RoomRealtimeStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room status: %w", err)
	}

	return &status, nil
}

// PublishFusedEvent 把融合事件发布到 Redis Streams
func (c *CacheManager) PublishFusedEvent(ctx context.Context, event *models.FusedEvent) error {
	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Cache.EventStream, event)
	if err != nil {
		return fmt.Errorf("failed to publish fused event to stream: %w", err)
	}

	c.logger.Debug("Published fused event to Redis Streams",
		zap.String("stream", c.config.Cache.EventStream),
		zap.String("stream_id", streamID),
		zap.String("event_type", string(event.EventType)),
		zap.String("primary_camera", event.PrimaryCamera),
	)

	return nil
}
