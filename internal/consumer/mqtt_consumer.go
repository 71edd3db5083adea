package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqttcommon "github.com/letranminhdat1516/IPBMS-sub000/internal/common/mqtt"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/queue"
)

// EmergencyConsumer 紧急按钮 MQTT 消费者
// 订阅 emergency/{room_id}/button，把按钮按压转换为 manual_emergency 事件注入融合队列
type EmergencyConsumer struct {
	config     *config.Config
	mqttClient *mqttcommon.Client
	eventQueue *queue.EventQueue
	logger     *zap.Logger
}

// NewEmergencyConsumer 创建紧急按钮消费者
func NewEmergencyConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	eventQueue *queue.EventQueue,
	logger *zap.Logger,
) *EmergencyConsumer {
	return &EmergencyConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		eventQueue: eventQueue,
		logger:     logger,
	}
}

// Start 启动消费者
func (c *EmergencyConsumer) Start(ctx context.Context) error {
	// 订阅紧急按钮主题
	if err := c.mqttClient.Subscribe(c.config.Emergency.Topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to emergency topic: %w", err)
	}

	c.logger.Info("Emergency consumer started",
		zap.String("topic", c.config.Emergency.Topic),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *EmergencyConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Emergency.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Emergency consumer stopped")
	return nil
}

// handleMessage 处理紧急按钮消息
func (c *EmergencyConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received emergency message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题中提取房间标识
	// 主题格式: emergency/{room_id}/button
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	roomID := parts[1]

	// 2. 解析消息（载荷可选，允许空按压）
	metadata := map[string]string{
		"source":  "emergency_button",
		"room_id": roomID,
	}
	if len(payload) > 0 {
		var mqttData map[string]interface{}
		if err := json.Unmarshal(payload, &mqttData); err != nil {
			c.logger.Warn("Failed to unmarshal emergency payload, using topic only",
				zap.String("topic", topic),
				zap.Error(err),
			)
		} else {
			for k, v := range mqttData {
				metadata[k] = fmt.Sprintf("%v", v)
			}
		}
	}

	// 3. 构建 manual_emergency 事件（手动触发置信度恒为 1.0）
	event := models.CameraEvent{
		EventID:    uuid.New().String(),
		CameraID:   "button:" + roomID,
		Timestamp:  time.Now(),
		EventType:  models.EventTypeManualEmergency,
		Confidence: 1.0,
		Metadata:   metadata,
	}

	// 4. 注入融合队列
	c.eventQueue.Push(event)

	c.logger.Info("Emergency button event queued",
		zap.String("room_id", roomID),
		zap.String("event_id", event.EventID),
	)

	return nil
}
