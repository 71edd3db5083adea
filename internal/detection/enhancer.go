package detection

// 运动增强参数
const (
	// 运动水平归一化上限：达到该水平获得最大增强
	motionBoostCeiling = 0.4
	// 最大增强比例（+30%）
	motionBoostMax = 0.3
	// 静止场景的轻度惩罚系数
	staticPenalty = 0.85
)

// EnhanceConfidence 运动感知的置信度增强函数
//
// 运动水平超过下限时按比例增强置信度（奖励符合物理直觉的活动），
// 运动接近零时轻度惩罚（抑制静态误报，如海报/电视画面上的"人"）
func EnhanceConfidence(raw, motionLevel, motionFloor float64) float64 {
	if raw <= 0 {
		return 0
	}

	var enhanced float64
	if motionLevel > motionFloor {
		ratio := motionLevel / motionBoostCeiling
		if ratio > 1 {
			ratio = 1
		}
		enhanced = raw * (1 + motionBoostMax*ratio)
	} else {
		enhanced = raw * staticPenalty
	}

	if enhanced > 1 {
		enhanced = 1
	}
	return enhanced
}
