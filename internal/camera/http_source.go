package camera

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPFrameSource 通过 HTTP 快照接口取帧
// 大多数 IP 摄像头提供 /snapshot 形式的 JPEG 快照端点
type HTTPFrameSource struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPFrameSource 创建 HTTP 快照取帧源
func NewHTTPFrameSource(url string, timeout time.Duration, logger *zap.Logger) *HTTPFrameSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPFrameSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// GetFrame 拉取一帧并解码
// 瞬时失败返回错误由调用方退避重试
func (s *HTTPFrameSource) GetFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	frame, err := jpeg.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return frame, nil
}
