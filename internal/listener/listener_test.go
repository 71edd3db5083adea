package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/audio"
	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"
)

// fakeSource 测试用通知来源
type fakeSource struct {
	ch      chan *Notification
	pingErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan *Notification, 16)}
}

func (s *fakeSource) Notifications() <-chan *Notification { return s.ch }
func (s *fakeSource) Ping() error                         { return s.pingErr }
func (s *fakeSource) Close() error                        { close(s.ch); return nil }

// fakePlayer 测试用播放器
type fakePlayer struct {
	mu        sync.Mutex
	playCalls int
	stopCalls int
	playErr   error
}

func (p *fakePlayer) PlayLoop(sound string) (audio.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return nil, p.playErr
	}
	p.playCalls++
	return p.playCalls, nil
}

func (p *fakePlayer) Stop(handle audio.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	return nil
}

func (p *fakePlayer) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playCalls, p.stopCalls
}

// fakeEventStore 测试用事件存储
type fakeEventStore struct {
	mu      sync.Mutex
	updates map[string]models.LifecycleState
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{updates: make(map[string]models.LifecycleState)}
}

func (s *fakeEventStore) UpdateLifecycleState(ctx context.Context, eventID string, state models.LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[eventID] = state
	return nil
}

func (s *fakeEventStore) get(eventID string) (models.LifecycleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.updates[eventID]
	return state, ok
}

func (s *fakeEventStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func testConfig() Config {
	return Config{
		WaitTimeout:      50 * time.Millisecond,
		DedupCap:         1000,
		DedupSweep:       5 * time.Minute,
		ReconnectBackoff: 10 * time.Millisecond,
		AudioDuration:    time.Hour,
		Sound:            "emergency.wav",
	}
}

func activationPayload(eventID string) string {
	return `{"event_id":"` + eventID + `","user_id":"user-1","state":"ALARM_ACTIVATED","message":"fall"}`
}

func TestAlarmListener_ActivatesAndWritesAcked(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	eventID := uuid.New().String()
	source.ch <- &Notification{Payload: activationPayload(eventID)}

	require.Eventually(t, func() bool {
		state, ok := store.get(eventID)
		return ok && state == models.LifecycleAcked
	}, time.Second, 10*time.Millisecond)

	plays, _ := player.counts()
	assert.Equal(t, 1, plays)

	cancel()
	<-done
}

func TestAlarmListener_DuplicateNotificationIgnored(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	eventID := uuid.New().String()
	source.ch <- &Notification{Payload: activationPayload(eventID)}
	source.ch <- &Notification{Payload: activationPayload(eventID)}
	source.ch <- &Notification{Payload: activationPayload(eventID)}

	require.Eventually(t, func() bool {
		_, ok := store.get(eventID)
		return ok
	}, time.Second, 10*time.Millisecond)

	// 给重复通知留处理时间
	time.Sleep(100 * time.Millisecond)

	plays, _ := player.counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, store.count())

	cancel()
	<-done
}

func TestAlarmListener_AudioFailureWritesCanceled(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{playErr: errors.New("no audio device")}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	eventID := uuid.New().String()
	source.ch <- &Notification{Payload: activationPayload(eventID)}

	require.Eventually(t, func() bool {
		state, ok := store.get(eventID)
		return ok && state == models.LifecycleCanceled
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestAlarmListener_MalformedPayloadDropped(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	source.ch <- &Notification{Payload: `{not json`}
	source.ch <- &Notification{Payload: `{"state":"ALARM_ACTIVATED"}`} // 缺 event_id

	time.Sleep(100 * time.Millisecond)

	plays, _ := player.counts()
	assert.Equal(t, 0, plays)
	assert.Equal(t, 0, store.count())

	cancel()
	<-done
}

func TestAlarmListener_NonActivationStateIgnored(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	eventID := uuid.New().String()
	source.ch <- &Notification{Payload: `{"event_id":"` + eventID + `","state":"ACKED"}`}

	time.Sleep(100 * time.Millisecond)

	plays, _ := player.counts()
	assert.Equal(t, 0, plays)
	assert.Equal(t, 0, store.count())

	cancel()
	<-done
}

func TestAlarmListener_AudioAutoStops(t *testing.T) {
	cfg := testConfig()
	cfg.AudioDuration = 50 * time.Millisecond

	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(cfg, source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	source.ch <- &Notification{Payload: activationPayload(uuid.New().String())}

	require.Eventually(t, func() bool {
		_, stops := player.counts()
		return stops == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestAlarmListener_StopsOnContextCancel(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on context cancel")
	}
}

func TestAlarmListener_ReconnectMarkerTriggersPing(t *testing.T) {
	source := newFakeSource()
	player := &fakePlayer{}
	store := newFakeEventStore()
	l := NewAlarmListener(testConfig(), source, store, player, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	// 重连标记后照常处理后续通知
	source.ch <- nil
	eventID := uuid.New().String()
	source.ch <- &Notification{Payload: activationPayload(eventID)}

	require.Eventually(t, func() bool {
		state, ok := store.get(eventID)
		return ok && state == models.LifecycleAcked
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestDedupSet_EvictsOldestAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.DedupCap = 3

	l := NewAlarmListener(cfg, newFakeSource(), newFakeEventStore(), &fakePlayer{}, zap.NewNop())

	l.remember("a")
	time.Sleep(time.Millisecond)
	l.remember("b")
	time.Sleep(time.Millisecond)
	l.remember("c")
	time.Sleep(time.Millisecond)
	l.remember("d")

	assert.Len(t, l.processed, 3)
	_, hasOldest := l.processed["a"]
	assert.False(t, hasOldest)
	_, hasNewest := l.processed["d"]
	assert.True(t, hasNewest)
}
