package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *CacheManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.RoomKeyPrefix = "ipbms:room:"
	cfg.Cache.RoomSuffix = ":realtime"
	cfg.Cache.RoomTTL = 30
	cfg.Cache.EventStream = "camera:events:stream"

	logger := zap.NewNop()
	cacheManager := NewCacheManager(cfg, redisClient, logger)

	return mr, redisClient, cacheManager
}

func testFusedEvent() *models.FusedEvent {
	return &models.FusedEvent{
		PrimaryCamera:     "cam-2",
		EventType:         models.EventTypeFall,
		Confidence:        0.6,
		Timestamp:         time.Now(),
		FrameRef:          "/snapshots/cam-2_fall.jpg",
		SupportingCameras: []string{"cam-1"},
		ConsensusScore:    0.67,
	}
}

func TestCacheManager_UpdateAndGetRoomStatus(t *testing.T) {
	_, _, cacheManager := setupTestRedis(t)

	ctx := context.Background()
	roomID := "room-101"

	err := cacheManager.UpdateRoomStatus(ctx, roomID, testFusedEvent())
	require.NoError(t, err)

	status, err := cacheManager.GetRoomStatus(ctx, roomID)

	require.NoError(t, err)
	assert.Equal(t, roomID, status.RoomID)
	assert.Equal(t, models.EventTypeFall, status.EventType)
	assert.Equal(t, 0.6, status.Confidence)
	assert.Equal(t, 0.67, status.ConsensusScore)
	assert.Equal(t, "cam-2", status.PrimaryCamera)
	assert.Equal(t, "/snapshots/cam-2_fall.jpg", status.FrameRef)
}

func TestCacheManager_GetRoomStatus_NotFound(t *testing.T) {
	_, _, cacheManager := setupTestRedis(t)

	_, err := cacheManager.GetRoomStatus(context.Background(), "room-not-exist")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "room status not found")
}

func TestCacheManager_RoomStatusExpires(t *testing.T) {
	mr, _, cacheManager := setupTestRedis(t)

	ctx := context.Background()
	roomID := "room-101"

	err := cacheManager.UpdateRoomStatus(ctx, roomID, testFusedEvent())
	require.NoError(t, err)

	// TTL 到期后缓存消失
	mr.FastForward(31 * time.Second)

	_, err = cacheManager.GetRoomStatus(ctx, roomID)
	assert.Error(t, err)
}

func TestCacheManager_PublishFusedEvent(t *testing.T) {
	mr, _, cacheManager := setupTestRedis(t)

	ctx := context.Background()

	err := cacheManager.PublishFusedEvent(ctx, testFusedEvent())
	require.NoError(t, err)

	// 验证流里出现一条消息
	assert.True(t, mr.Exists("camera:events:stream"))
}
