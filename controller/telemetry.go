package controller

import (
	"context"
	"time"
)

// MotionEvent summarizes one executed sequence for telemetry.
type MotionEvent struct {
	Gesture   string
	Steps     int
	Completed int
	Failure   string
	At        time.Time
}

// Recorder receives motion events. Recording is best-effort: failures are
// logged and never affect the motion result.
type Recorder interface {
	RecordMotion(ctx context.Context, event MotionEvent) error
}

type noopRecorder struct{}

var _ Recorder = noopRecorder{}

// RecordMotion implements Recorder.
func (noopRecorder) RecordMotion(context.Context, MotionEvent) error { return nil }
