package detection

import (
	"time"
)

// Phase 确认状态机的阶段
// 状态流转：IDLE → ACCUMULATING → CONFIRMED → COOLDOWN → IDLE
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseAccumulating Phase = "ACCUMULATING"
	PhaseCooldown     Phase = "COOLDOWN"
)

// StateMachineConfig 状态机配置（每事件类型一份）
type StateMachineConfig struct {
	InterestThreshold float64       // 进入 ACCUMULATING 的平滑置信度阈值
	ConfirmFrames     int           // 触发 CONFIRMED 所需的连续帧数
	ConfirmationCap   int           // 确认帧计数器上限
	Cooldown          time.Duration // CONFIRMED 后的冷却时长
	HistorySize       int           // 平滑历史长度（≤10）
}

// DetectionState 每（摄像头, 事件类型）一份的确认/冷却状态机
// 由摄像头循环独占持有和修改，帧间状态转移严格有序，不需要加锁
type DetectionState struct {
	cfg                StateMachineConfig
	phase              Phase
	confirmationFrames int
	cooldownUntil      time.Time
	history            []float64 // 增强置信度的有界历史（环形语义）
}

// NewDetectionState 创建状态机
func NewDetectionState(cfg StateMachineConfig) *DetectionState {
	if cfg.HistorySize <= 0 || cfg.HistorySize > 10 {
		cfg.HistorySize = 10
	}
	if cfg.ConfirmationCap <= 0 {
		cfg.ConfirmationCap = 30
	}
	return &DetectionState{
		cfg:   cfg,
		phase: PhaseIdle,
	}
}

// Observe 输入一帧的增强置信度，推进状态机
// 返回：confirmed（本帧是否触发 CONFIRMED）和 smoothed（平滑后的工作置信度）
func (s *DetectionState) Observe(enhanced float64, now time.Time) (confirmed bool, smoothed float64) {
	// 时间平滑：维护有界历史，使用算术平均作为工作置信度，
	// 吸收单帧分类器噪声
	s.history = append(s.history, enhanced)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[1:]
	}
	smoothed = s.mean()

	// 冷却期：平滑置信度照常跟踪，但不允许新的 CONFIRMED 转移
	if s.phase == PhaseCooldown {
		if now.Before(s.cooldownUntil) {
			return false, smoothed
		}
		// 冷却结束，回到 IDLE
		s.phase = PhaseIdle
		s.cooldownUntil = time.Time{}
	}

	above := smoothed >= s.cfg.InterestThreshold

	switch s.phase {
	case PhaseIdle:
		if above {
			s.phase = PhaseAccumulating
			s.confirmationFrames = 1
		}

	case PhaseAccumulating:
		if above {
			// 上限保护：计数器不超过配置的 cap
			if s.confirmationFrames < s.cfg.ConfirmationCap {
				s.confirmationFrames++
			}
		} else {
			// 下降时递减，永不低于零
			if s.confirmationFrames > 0 {
				s.confirmationFrames--
			}
			if s.confirmationFrames == 0 {
				s.phase = PhaseIdle
			}
		}
	}

	// CONFIRMED：计数器到达所需帧数，发出一次确认并进入冷却
	if s.phase == PhaseAccumulating && s.confirmationFrames >= s.cfg.ConfirmFrames {
		s.phase = PhaseCooldown
		s.confirmationFrames = 0
		s.cooldownUntil = now.Add(s.cfg.Cooldown)
		return true, smoothed
	}

	return false, smoothed
}

// Phase 当前阶段
func (s *DetectionState) CurrentPhase() Phase {
	return s.phase
}

// ConfirmationFrames 当前确认帧计数
func (s *DetectionState) ConfirmationFrames() int {
	return s.confirmationFrames
}

// CooldownUntil 冷却截止时间（零值表示不在冷却期）
func (s *DetectionState) CooldownUntil() time.Time {
	return s.cooldownUntil
}

// Reset 重置状态（摄像头断开时调用）
func (s *DetectionState) Reset() {
	s.phase = PhaseIdle
	s.confirmationFrames = 0
	s.cooldownUntil = time.Time{}
	s.history = s.history[:0]
}

func (s *DetectionState) mean() float64 {
	if len(s.history) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.history {
		sum += v
	}
	return sum / float64(len(s.history))
}
