package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// FrameMetrics keeps a rolling frame-time average and a frames-per-second
// figure refreshed once per accumulated second of frame time.
type FrameMetrics struct {
	mu sync.Mutex

	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	measured           bool
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update records the duration of one frame.
func (m *FrameMetrics) Update(frameElapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Calculate frame ms average
	frameMS := float64(frameElapsed) / float64(time.Millisecond)
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Count all frames, then fold them into FPS once a full second went by.
	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
		m.measured = true
	}
}

func (m *FrameMetrics) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msAvg
}

// CurrentRate reports the last measured frame rate. The second value is false
// until a full second of frames has been recorded.
func (m *FrameMetrics) CurrentRate() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps, m.measured
}
