package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/config"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEventStore 记录写入的事件存储
type fakeEventStore struct {
	mu     sync.Mutex
	events []*models.DetectionEvent
}

func (f *fakeEventStore) CreateDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// fakeAlertStore 内存报警存储
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (f *fakeAlertStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlertStore) GetMaxActivePriority(ctx context.Context, userID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	hasActive := false
	for _, alert := range f.alerts {
		if alert.UserID == userID && alert.Status == models.AlertStatusActive {
			hasActive = true
			if alert.PriorityLevel > max {
				max = alert.PriorityLevel
			}
		}
	}
	return max, hasActive, nil
}

func newTestGate() (*Gate, *fakeEventStore, *fakeAlertStore) {
	cfg, _ := config.Load()
	events := &fakeEventStore{}
	alerts := &fakeAlertStore{}
	return NewGate(cfg, events, alerts, zap.NewNop()), events, alerts
}

func fusedEvent(eventType models.EventType, confidence float64) *models.FusedEvent {
	return &models.FusedEvent{
		PrimaryCamera:  "cam-1",
		EventType:      eventType,
		Confidence:     confidence,
		Timestamp:      time.Now(),
		ConsensusScore: 1.0,
	}
}

func TestSeverityFor_ThresholdTables(t *testing.T) {
	g, _, _ := newTestGate()

	// fall: ≥0.60→high, ≥0.40→medium, else low
	assert.Equal(t, models.SeverityHigh, g.SeverityFor(models.EventTypeFall, 0.60))
	assert.Equal(t, models.SeverityMedium, g.SeverityFor(models.EventTypeFall, 0.45))
	assert.Equal(t, models.SeverityLow, g.SeverityFor(models.EventTypeFall, 0.30))

	// seizure: ≥0.50→high, ≥0.30→medium
	assert.Equal(t, models.SeverityHigh, g.SeverityFor(models.EventTypeSeizure, 0.55))
	assert.Equal(t, models.SeverityMedium, g.SeverityFor(models.EventTypeSeizure, 0.35))

	// manual_emergency 总是 high
	assert.Equal(t, models.SeverityHigh, g.SeverityFor(models.EventTypeManualEmergency, 0.0))
}

func TestPriorityLevel(t *testing.T) {
	assert.Equal(t, 4, PriorityLevel(models.SeverityHigh, models.AlertStatusActive))
	assert.Equal(t, 3, PriorityLevel(models.SeverityMedium, models.AlertStatusActive))
	assert.Equal(t, 2, PriorityLevel(models.SeverityLow, models.AlertStatusActive))

	// acknowledged 减 2
	assert.Equal(t, 2, PriorityLevel(models.SeverityHigh, models.AlertStatusAcknowledged))
	assert.Equal(t, 0, PriorityLevel(models.SeverityLow, models.AlertStatusAcknowledged))

	// resolved 为 0
	assert.Equal(t, 0, PriorityLevel(models.SeverityHigh, models.AlertStatusResolved))
}

func TestProcess_LowerPriorityRejected(t *testing.T) {
	g, _, alerts := newTestGate()
	ctx := context.Background()

	// 已有 high（优先级 4）活跃报警
	result, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.9))
	require.NoError(t, err)
	require.True(t, result.AlertCreated)
	assert.Equal(t, 4, result.Alert.PriorityLevel)

	// 新 medium（优先级 3）事件必须被拒绝
	result, err = g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.45))
	require.NoError(t, err)
	assert.False(t, result.AlertCreated)
	assert.Nil(t, result.Alert)
	assert.Len(t, alerts.alerts, 1)

	// 新 high（优先级 4）事件必须被准入
	result, err = g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.8))
	require.NoError(t, err)
	assert.True(t, result.AlertCreated)
	assert.Len(t, alerts.alerts, 2)
}

func TestProcess_FloorWithNoActiveAlerts(t *testing.T) {
	g, _, _ := newTestGate()
	ctx := context.Background()

	// 无活跃报警：low（优先级 2）低于默认门槛 3，拒绝
	result, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.30))
	require.NoError(t, err)
	assert.False(t, result.AlertCreated)

	// medium（优先级 3）达到门槛，准入
	result, err = g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.45))
	require.NoError(t, err)
	assert.True(t, result.AlertCreated)
	assert.Equal(t, models.SeverityMedium, result.Alert.Severity)
}

func TestProcess_AuditEventAlwaysWritten(t *testing.T) {
	g, events, _ := newTestGate()
	ctx := context.Background()

	// 被抑制的事件也要写入审计记录
	result, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.10))
	require.NoError(t, err)
	assert.False(t, result.AlertCreated)
	require.Len(t, events.events, 1)
	assert.Equal(t, models.LifecycleNotified, events.events[0].Lifecycle)
	assert.Equal(t, models.EventTypeFall, events.events[0].EventType)
	assert.NotEmpty(t, events.events[0].EventID)
}

func TestProcess_AlertLinksToEvent(t *testing.T) {
	g, events, alerts := newTestGate()
	ctx := context.Background()

	result, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeSeizure, 0.8))
	require.NoError(t, err)
	require.True(t, result.AlertCreated)
	assert.Equal(t, events.events[0].EventID, alerts.alerts[0].EventID)
	assert.Equal(t, "user-1", alerts.alerts[0].UserID)
	assert.Equal(t, models.AlertStatusActive, alerts.alerts[0].Status)
}

func TestProcess_ConcurrentSameUserSerialized(t *testing.T) {
	g, _, alerts := newTestGate()
	ctx := context.Background()

	// 先建立一个 medium 报警
	_, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.45))
	require.NoError(t, err)

	// 并发发送相同优先级的事件：每用户锁保证检查-写入序列化，
	// 全部准入（相等优先级通过），但不会出现读写竞争
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.45))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, alerts.alerts, 9)
}

func TestProcess_DifferentUsersIndependent(t *testing.T) {
	g, _, _ := newTestGate()
	ctx := context.Background()

	// user-1 有 high 报警不影响 user-2 的准入
	_, err := g.Process(ctx, "user-1", fusedEvent(models.EventTypeFall, 0.9))
	require.NoError(t, err)

	result, err := g.Process(ctx, "user-2", fusedEvent(models.EventTypeFall, 0.45))
	require.NoError(t, err)
	assert.True(t, result.AlertCreated)
}
