package models

import (
	"image"
	"time"
)

// CameraFrame 单帧及其元信息（用于多摄像头单管线模式的最佳帧选择）
type CameraFrame struct {
	CameraID     string
	Frame        image.Image
	Timestamp    time.Time
	QualityScore float64 // 由 quality.Analyzer 计算，[0,1]
}
