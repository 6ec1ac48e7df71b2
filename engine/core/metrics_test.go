package core

import (
	"math"
	"testing"
)

func TestMetricsAverageAndFPS(t *testing.T) {
	m := NewMetrics()
	// 60 frames of 20ms: the first second closes after frame 51.
	for i := 0; i < 60; i++ {
		m.Update(0.020, 3)
	}
	if math.Abs(m.FrameTime()-20) > 1e-9 {
		t.Errorf("FrameTime() = %v, want 20", m.FrameTime())
	}
	if m.FPS() != 50 {
		t.Errorf("FPS() = %v, want 50", m.FPS())
	}
	if m.DrawCalls() != 3 {
		t.Errorf("DrawCalls() = %d, want 3", m.DrawCalls())
	}
}
