package detection

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// FileSnapshotStore 基于文件系统的快照存储
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore 创建快照存储（确保目录存在）
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// SaveSnapshot 将帧保存为 JPEG，返回文件路径作为快照引用
func (s *FileSnapshotStore) SaveSnapshot(cameraID string, frame image.Image, eventType models.EventType, ts time.Time) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%d.jpg", cameraID, eventType, ts.UnixNano()))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, frame, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return path, nil
}
