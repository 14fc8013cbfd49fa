package systems

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameSchedulerFiresPerInterval(t *testing.T) {
	s := NewFrameScheduler()
	var fast, slow int
	s.ScheduleRecurring(func() { fast++ }, 10*time.Millisecond)
	s.ScheduleRecurring(func() { slow++ }, 30*time.Millisecond)

	for i := 0; i < 6; i++ {
		s.Update(10 * time.Millisecond)
	}
	assert.Equal(t, 6, fast)
	assert.Equal(t, 2, slow)
	assert.Equal(t, 2, s.Len())
}

func TestFrameSchedulerLongFrameFiresOnce(t *testing.T) {
	s := NewFrameScheduler()
	calls := 0
	s.ScheduleRecurring(func() { calls++ }, 10*time.Millisecond)

	s.Update(100 * time.Millisecond)
	assert.Equal(t, 1, calls)
	s.Update(time.Millisecond)
	assert.Equal(t, 1, calls, "a long frame does not leave a backlog")
}

func TestFrameSchedulerCancelFromCallback(t *testing.T) {
	s := NewFrameScheduler()
	calls := 0
	var h TickHandle
	h = s.ScheduleRecurring(func() {
		calls++
		s.Cancel(h)
	}, time.Millisecond)

	s.Update(time.Millisecond)
	s.Update(time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Len())
}

func TestFrameSchedulerCancelOtherInSameFrame(t *testing.T) {
	s := NewFrameScheduler()
	second := 0
	var other TickHandle
	s.ScheduleRecurring(func() { s.Cancel(other) }, time.Millisecond)
	other = s.ScheduleRecurring(func() { second++ }, time.Millisecond)

	s.Update(time.Millisecond)
	assert.Equal(t, 0, second, "cancelled before its turn in the frame")
	s.Cancel(TickHandle(999))
}

func TestTimerScheduler(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Close()

	var calls atomic.Int32
	h := s.ScheduleRecurring(func() { calls.Add(1) }, time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	s.Cancel(h)
	// one tick may already be running
	time.Sleep(5 * time.Millisecond)
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestTimerSchedulerClose(t *testing.T) {
	s := NewTimerScheduler()
	var calls atomic.Int32
	s.ScheduleRecurring(func() { calls.Add(1) }, time.Millisecond)
	s.ScheduleRecurring(func() { calls.Add(1) }, time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)

	s.Close()
	time.Sleep(5 * time.Millisecond)
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}
