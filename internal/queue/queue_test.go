package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEventQueue_PushDrain(t *testing.T) {
	q := NewEventQueue(8)

	q.Push(models.CameraEvent{EventID: "e1"})
	q.Push(models.CameraEvent{EventID: "e2"})
	assert.Equal(t, 2, q.Len())

	events := q.Drain()
	assert.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].EventID)
	assert.Equal(t, "e2", events[1].EventID)

	// 排空后队列为空
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}

func TestEventQueue_OverflowDropsOldest(t *testing.T) {
	q := NewEventQueue(2)

	q.Push(models.CameraEvent{EventID: "e1"})
	q.Push(models.CameraEvent{EventID: "e2"})
	q.Push(models.CameraEvent{EventID: "e3"})

	events := q.Drain()
	assert.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].EventID)
	assert.Equal(t, "e3", events[1].EventID)
	assert.Equal(t, int64(1), q.Dropped())
}

func TestEventQueue_ConcurrentPush(t *testing.T) {
	q := NewEventQueue(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Push(models.CameraEvent{EventID: fmt.Sprintf("cam%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, q.Len())
	assert.Equal(t, int64(0), q.Dropped())
}
