package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestState() *DetectionState {
	return NewDetectionState(StateMachineConfig{
		InterestThreshold: 0.3,
		ConfirmFrames:     3,
		ConfirmationCap:   10,
		Cooldown:          30 * time.Second,
		HistorySize:       10,
	})
}

func TestDetectionState_BelowThresholdNeverLeavesIdle(t *testing.T) {
	state := newTestState()
	now := time.Now()

	// 全部低于 interest 阈值的序列：永不离开 IDLE，零事件
	for i := 0; i < 100; i++ {
		confirmed, _ := state.Observe(0.2, now.Add(time.Duration(i)*time.Second))
		assert.False(t, confirmed)
		assert.Equal(t, PhaseIdle, state.CurrentPhase())
	}
}

func TestDetectionState_ConfirmAfterRequiredFrames(t *testing.T) {
	state := newTestState()
	now := time.Now()

	// 前两帧累积，第三帧确认
	confirmed, _ := state.Observe(0.8, now)
	assert.False(t, confirmed)
	assert.Equal(t, PhaseAccumulating, state.CurrentPhase())

	confirmed, _ = state.Observe(0.8, now.Add(time.Second))
	assert.False(t, confirmed)

	confirmed, _ = state.Observe(0.8, now.Add(2*time.Second))
	assert.True(t, confirmed)

	// 确认后：计数器清零，进入冷却
	assert.Equal(t, 0, state.ConfirmationFrames())
	assert.Equal(t, PhaseCooldown, state.CurrentPhase())
}

func TestDetectionState_CooldownSuppressesSecondEvent(t *testing.T) {
	state := newTestState()
	now := time.Now()

	// 触发一次确认
	state.Observe(0.9, now)
	state.Observe(0.9, now.Add(time.Second))
	confirmed, _ := state.Observe(0.9, now.Add(2*time.Second))
	assert.True(t, confirmed)

	// 冷却期内高置信度持续：不产生第二次确认（防刷屏法则）
	for i := 3; i < 30; i++ {
		confirmed, _ := state.Observe(0.9, now.Add(time.Duration(i)*time.Second))
		assert.False(t, confirmed)
	}

	// 冷却结束后（30s cooldown）可以再次确认
	after := now.Add(40 * time.Second)
	var reconfirmed bool
	for i := 0; i < 5; i++ {
		c, _ := state.Observe(0.9, after.Add(time.Duration(i)*time.Second))
		if c {
			reconfirmed = true
		}
	}
	assert.True(t, reconfirmed)
}

func TestDetectionState_CounterNeverExceedsCap(t *testing.T) {
	state := NewDetectionState(StateMachineConfig{
		InterestThreshold: 0.3,
		ConfirmFrames:     100, // 高到永不确认
		ConfirmationCap:   5,
		Cooldown:          time.Second,
		HistorySize:       10,
	})
	now := time.Now()

	for i := 0; i < 50; i++ {
		state.Observe(0.9, now.Add(time.Duration(i)*time.Second))
		assert.LessOrEqual(t, state.ConfirmationFrames(), 5)
	}
}

func TestDetectionState_CounterDecrementsNeverBelowZero(t *testing.T) {
	// HistorySize=1 关闭平滑，单独验证计数器递减行为
	state := NewDetectionState(StateMachineConfig{
		InterestThreshold: 0.3,
		ConfirmFrames:     100, // 高到永不确认
		ConfirmationCap:   10,
		Cooldown:          time.Second,
		HistorySize:       1,
	})
	now := time.Now()

	// 累积 5 帧
	for i := 0; i < 5; i++ {
		state.Observe(0.9, now.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, PhaseAccumulating, state.CurrentPhase())
	assert.Equal(t, 5, state.ConfirmationFrames())

	// 连续低置信度：计数器递减到 0 后回到 IDLE，永不低于零
	for i := 5; i < 20; i++ {
		state.Observe(0.0, now.Add(time.Duration(i)*time.Second))
		assert.GreaterOrEqual(t, state.ConfirmationFrames(), 0)
	}
	assert.Equal(t, PhaseIdle, state.CurrentPhase())
	assert.Equal(t, 0, state.ConfirmationFrames())
}

func TestDetectionState_SmoothingAbsorbsSingleFrameNoise(t *testing.T) {
	state := newTestState()
	now := time.Now()

	// 填充低置信度历史
	for i := 0; i < 10; i++ {
		state.Observe(0.1, now.Add(time.Duration(i)*time.Second))
	}

	// 单帧尖峰：平滑后仍低于阈值，不进入累积
	confirmed, smoothed := state.Observe(1.0, now.Add(11*time.Second))
	assert.False(t, confirmed)
	assert.Less(t, smoothed, 0.3)
	assert.Equal(t, PhaseIdle, state.CurrentPhase())
}

func TestDetectionState_Reset(t *testing.T) {
	state := newTestState()
	now := time.Now()

	state.Observe(0.9, now)
	state.Observe(0.9, now.Add(time.Second))
	state.Observe(0.9, now.Add(2*time.Second))
	assert.Equal(t, PhaseCooldown, state.CurrentPhase())

	state.Reset()
	assert.Equal(t, PhaseIdle, state.CurrentPhase())
	assert.Equal(t, 0, state.ConfirmationFrames())
	assert.True(t, state.CooldownUntil().IsZero())
}

func TestEnhanceConfidence(t *testing.T) {
	// 零置信度保持为零
	assert.Equal(t, 0.0, EnhanceConfidence(0, 0.5, 0.02))

	// 有运动时按比例增强
	boosted := EnhanceConfidence(0.5, 0.2, 0.02)
	assert.Greater(t, boosted, 0.5)

	// 运动越大增强越多（到上限为止）
	assert.Greater(t, EnhanceConfidence(0.5, 0.4, 0.02), EnhanceConfidence(0.5, 0.1, 0.02))

	// 静止场景轻度惩罚
	penalized := EnhanceConfidence(0.5, 0.0, 0.02)
	assert.Less(t, penalized, 0.5)

	// 裁剪到 1.0
	assert.LessOrEqual(t, EnhanceConfidence(0.95, 0.5, 0.02), 1.0)
}
