package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/camera"
	logpkg "github.com/letranminhdat1516/IPBMS-sub000/internal/common/logger"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/detection"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "ipbms-monitor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting ipbms-monitor service",
		zap.String("version", "1.0.0"),
		zap.String("alarm_mode", cfg.Alarm.Mode),
		zap.String("event_stream", cfg.Cache.EventStream),
	)

	// 解析摄像头接入清单
	cameras, err := parseCameras(os.Getenv("CAMERAS"), os.Getenv("CLASSIFIER_URL"), logger)
	if err != nil {
		logger.Fatal("Failed to parse camera registrations", zap.Error(err))
	}

	// 创建服务
	monitorService, err := service.NewMonitorService(cfg, cameras, logger)
	if err != nil {
		logger.Fatal("Failed to create monitor service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitorService.Start(ctx); err != nil {
		logger.Fatal("Failed to start monitor service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := monitorService.Stop(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}

// parseCameras 解析 CAMERAS 环境变量
//
// 格式（分号分隔多条）:
//
//	camera_id|room_id|user_id|snapshot_url
//
// 同房间多摄像头单管线模式用 + 连接多路:
//
//	cam-1+cam-2|room-101|user-1|http://cam1/snap+http://cam2/snap
func parseCameras(raw, classifierURL string, logger *zap.Logger) ([]service.CameraRegistration, error) {
	if raw == "" {
		return nil, fmt.Errorf("CAMERAS environment variable is required")
	}
	if classifierURL == "" {
		return nil, fmt.Errorf("CLASSIFIER_URL environment variable is required")
	}

	classifier := camera.NewHTTPClassifier(classifierURL, 10*time.Second, logger)

	var registrations []service.CameraRegistration
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		fields := strings.Split(entry, "|")
		if len(fields) != 4 {
			return nil, fmt.Errorf("invalid camera entry: %q", entry)
		}

		cameraIDs := strings.Split(fields[0], "+")
		urls := strings.Split(fields[3], "+")
		if len(cameraIDs) != len(urls) {
			return nil, fmt.Errorf("camera/url count mismatch in entry: %q", entry)
		}

		var source detection.FrameSource
		if len(cameraIDs) == 1 {
			source = camera.NewHTTPFrameSource(urls[0], 5*time.Second, logger)
		} else {
			// 多摄像头单管线：按列出顺序分配优先级
			sources := make([]camera.NamedSource, 0, len(cameraIDs))
			priorities := make(map[string]int, len(cameraIDs))
			for i, id := range cameraIDs {
				sources = append(sources, camera.NamedSource{
					CameraID: id,
					Source:   camera.NewHTTPFrameSource(urls[i], 5*time.Second, logger),
				})
				priorities[id] = i + 1
			}
			source = camera.NewMultiCameraSource(sources, priorities, logger)
		}

		registrations = append(registrations, service.CameraRegistration{
			CameraID:   cameraIDs[0],
			RoomID:     fields[1],
			UserID:     fields[2],
			Source:     source,
			Classifier: classifier,
		})
	}

	if len(registrations) == 0 {
		return nil, fmt.Errorf("no camera registrations found in CAMERAS")
	}

	return registrations, nil
}
