// Package quality 提供单帧画质评分和帧间运动水平计算
//
// 主要功能：
// - 亮度评分：中间亮度区间得分最高（过暗/过亮都会被惩罚）
// - 清晰度评分：拉普拉斯方差代理（越高越清晰，饱和处理）
// - 运动评分：中等运动区间得分最高（过静/过乱都会被惩罚，
//   医疗看护事件需要"一些"运动但不是噪声）
// - 运动水平：缩小后的灰度帧对的帧差比例
package quality

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

const (
	// 分析用的缩小尺寸（降低每帧计算成本）
	analysisWidth  = 64
	analysisHeight = 48

	// 帧差判定为"变化"的灰度阈值（0-255）
	diffThreshold = 25

	// 拉普拉斯方差的饱和常数
	sharpnessSaturation = 500.0
)

// 质量综合评分权重
const (
	brightnessWeight = 0.3
	sharpnessWeight  = 0.4
	motionWeight     = 0.3
)

// Analyzer 帧质量分析器
type Analyzer struct{}

// NewAnalyzer 创建帧质量分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Score 计算综合质量评分
// quality_score = 0.3*brightness + 0.4*sharpness + 0.3*motion
func (a *Analyzer) Score(prev, cur image.Image) float64 {
	if cur == nil {
		return 0
	}

	gray := Downscale(cur)
	brightness := a.BrightnessScore(gray)
	sharpness := a.SharpnessScore(gray)

	motion := 0.0
	if prev != nil {
		motion = a.MotionScore(a.MotionLevel(prev, cur))
	}

	return brightnessWeight*brightness + sharpnessWeight*sharpness + motionWeight*motion
}

// BrightnessScore 亮度评分
// 平均亮度在 [90,170] 区间得满分，过暗/过亮线性惩罚
func (a *Analyzer) BrightnessScore(gray *image.Gray) float64 {
	mean := meanLuminance(gray)

	switch {
	case mean >= 90 && mean <= 170:
		return 1.0
	case mean < 90:
		return mean / 90
	default:
		return (255 - mean) / (255 - 170)
	}
}

// SharpnessScore 清晰度评分
// 使用拉普拉斯方差代理：方差越高越清晰，饱和趋近 1.0
func (a *Analyzer) SharpnessScore(gray *image.Gray) float64 {
	v := laplacianVariance(gray)
	return v / (v + sharpnessSaturation)
}

// MotionScore 运动评分
// 运动水平在 [0.05,0.40] 区间得满分，过静/过乱线性惩罚
func (a *Analyzer) MotionScore(level float64) float64 {
	switch {
	case level >= 0.05 && level <= 0.40:
		return 1.0
	case level < 0.05:
		return level / 0.05
	case level >= 0.80:
		return 0
	default:
		return (0.80 - level) / (0.80 - 0.40)
	}
}

// MotionLevel 计算两帧之间的运动水平
// 将两帧缩小并转为灰度后，统计灰度差超过阈值的像素比例，返回 [0,1]
func (a *Analyzer) MotionLevel(prev, cur image.Image) float64 {
	if prev == nil || cur == nil {
		return 0
	}

	prevGray := Downscale(prev)
	curGray := Downscale(cur)

	changed := 0
	total := analysisWidth * analysisHeight

	for y := 0; y < analysisHeight; y++ {
		for x := 0; x < analysisWidth; x++ {
			d := int(prevGray.GrayAt(x, y).Y) - int(curGray.GrayAt(x, y).Y)
			if d < 0 {
				d = -d
			}
			if d > diffThreshold {
				changed++
			}
		}
	}

	return float64(changed) / float64(total)
}

// Downscale 将任意图像缩小并转换为固定尺寸的灰度图
func Downscale(img image.Image) *image.Gray {
	rgba := image.NewRGBA(image.Rect(0, 0, analysisWidth, analysisHeight))
	draw.NearestNeighbor.Scale(rgba, rgba.Bounds(), img, img.Bounds(), draw.Src, nil)

	gray := image.NewGray(rgba.Bounds())
	for y := 0; y < analysisHeight; y++ {
		for x := 0; x < analysisWidth; x++ {
			r, g, b, _ := rgba.At(x, y).RGBA()
			// RGBA 返回 16-bit 分量，三通道取均值后压回 8-bit
			lum := uint8(((r + g + b) / 3) >> 8)
			gray.SetGray(x, y, color.Gray{Y: lum})
		}
	}

	return gray
}

// meanLuminance 计算灰度图的平均亮度（0-255）
func meanLuminance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	var sum float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// laplacianVariance 计算四邻域拉普拉斯响应的方差
func laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	responses := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			lap := float64(gray.GrayAt(x-1, y).Y) +
				float64(gray.GrayAt(x+1, y).Y) +
				float64(gray.GrayAt(x, y-1).Y) +
				float64(gray.GrayAt(x, y+1).Y) -
				4*center
			responses = append(responses, lap)
		}
	}

	var mean float64
	for _, r := range responses {
		mean += r
	}
	mean /= float64(len(responses))

	var variance float64
	for _, r := range responses {
		variance += math.Pow(r-mean, 2)
	}
	return variance / float64(len(responses))
}
