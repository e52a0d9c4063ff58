// Package controller implements the host side of the robot: the motion
// sequencer that turns gestures into paced, acknowledged servo commands,
// and the serial transport it drives.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rufuslabs/rufus"
)

// DefaultAckTimeout bounds the wait for each command's acknowledgment.
// Servo travel time dominates, so this is generous relative to the link.
const DefaultAckTimeout = 500 * time.Millisecond

// Glide defaults, matching the original hand-tuned smooth movement.
const (
	defaultGlideSteps = 10
	defaultGlideDelay = 20 * time.Millisecond
)

// Config assembles a Controller. Registry, Library, and Transport are
// required; the rest default sensibly.
type Config struct {
	Registry   *rufus.Registry
	Library    *rufus.Library
	Transport  Transport
	AckTimeout time.Duration
	Logger     *logrus.Logger
	Metrics    *Metrics
	Recorder   Recorder
}

// Controller executes one gesture or servo move at a time over the shared
// serial line. It owns the per-servo last-commanded state and the busy
// gate, so independent controllers can be instantiated in tests.
type Controller struct {
	registry   *rufus.Registry
	library    *rufus.Library
	transport  Transport
	ackTimeout time.Duration
	log        *logrus.Logger
	metrics    *Metrics
	recorder   Recorder

	// gate serializes sequences: the physical link has no multiplexing.
	// Held for the duration of one gesture; contenders are rejected, not
	// queued.
	gate sync.Mutex

	stateMu sync.RWMutex
	state   map[int]int // address -> last commanded angle
}

// New builds a Controller with every servo's state initialized to its rest
// angle. State mirrors, not guarantees, physical position: the servos have
// no feedback sensor.
func New(cfg Config) (*Controller, error) {
	if cfg.Registry == nil || cfg.Library == nil || cfg.Transport == nil {
		return nil, fmt.Errorf("controller requires registry, library, and transport")
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}

	state := make(map[int]int)
	for _, s := range cfg.Registry.Servos() {
		state[s.Address] = s.Rest
	}

	return &Controller{
		registry:   cfg.Registry,
		library:    cfg.Library,
		transport:  cfg.Transport,
		ackTimeout: cfg.AckTimeout,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		recorder:   cfg.Recorder,
		state:      state,
	}, nil
}

// ExecuteGesture runs the named gesture to completion. It returns
// rufus.ErrUnknownGesture for a bad name, ErrBusy if another sequence is in
// flight, or a *StepError describing a partial failure.
func (c *Controller) ExecuteGesture(ctx context.Context, name string) error {
	g, err := c.library.Resolve(name)
	if err != nil {
		return err
	}
	return c.run(ctx, g)
}

// MoveServo drives a single servo, following the same path as a one-step
// gesture.
func (c *Controller) MoveServo(ctx context.Context, address, angle int) error {
	if _, ok := c.registry.Lookup(address); !ok {
		return fmt.Errorf("%w: address %d", rufus.ErrUnknownServo, address)
	}
	g := rufus.Gesture{
		Name:  fmt.Sprintf("move(%d)", address),
		Steps: []rufus.MotionStep{{Address: address, Angle: angle}},
	}
	return c.run(ctx, g)
}

// GlideServo moves a servo to target in small interpolated increments,
// starting from its last commanded angle. Zero steps or delay select the
// defaults.
func (c *Controller) GlideServo(ctx context.Context, address, target, steps int, delay time.Duration) error {
	s, ok := c.registry.Lookup(address)
	if !ok {
		return fmt.Errorf("%w: address %d", rufus.ErrUnknownServo, address)
	}
	if steps <= 0 {
		steps = defaultGlideSteps
	}
	if delay <= 0 {
		delay = defaultGlideDelay
	}

	target = s.Clamp(target)
	c.stateMu.RLock()
	current := c.state[address]
	c.stateMu.RUnlock()

	g := rufus.Gesture{Name: fmt.Sprintf("glide(%d)", address)}
	for i := 1; i <= steps; i++ {
		angle := current + (target-current)*i/steps
		g.Steps = append(g.Steps, rufus.MotionStep{Address: address, Angle: angle, Delay: delay})
	}
	return c.run(ctx, g)
}

// MoveToRest drives every servo to its rest angle, pacing like a gesture.
// Used after connecting so the state map matches physical posture.
func (c *Controller) MoveToRest(ctx context.Context) error {
	g := rufus.Gesture{Name: "rest-all"}
	for _, s := range c.registry.Servos() {
		g.Steps = append(g.Steps, rufus.MotionStep{Address: s.Address, Angle: s.Rest, Delay: rufus.StepDelay})
	}
	return c.run(ctx, g)
}

// Status returns the last commanded angle per servo address.
func (c *Controller) Status() map[int]int {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	out := make(map[int]int, len(c.state))
	for addr, angle := range c.state {
		out[addr] = angle
	}
	return out
}

// Close closes the transport.
func (c *Controller) Close() error {
	return c.transport.Close()
}

func (c *Controller) run(ctx context.Context, g rufus.Gesture) error {
	if !c.gate.TryLock() {
		c.metrics.BusyRejections.Inc()
		return ErrBusy
	}

	// anything buffered while no command was in flight is stale: an ack
	// whose command already timed out, or executor chatter. Consuming it
	// as the first step's ack would desynchronize the channel.
	c.transport.Drain()

	c.metrics.Gestures.WithLabelValues(g.Name).Inc()
	c.log.WithFields(logrus.Fields{"gesture": g.Name, "steps": len(g.Steps)}).Info("executing")

	completed := len(g.Steps)
	var runErr error
	for i, step := range g.Steps {
		if err := c.runStep(ctx, g.Name, i, step); err != nil {
			c.metrics.GestureErrors.Inc()
			c.log.WithError(err).WithField("gesture", g.Name).Warn("sequence aborted")
			completed, runErr = i, err
			break
		}
	}

	// release before recording: telemetry is best-effort and must not
	// extend the busy window
	c.gate.Unlock()

	event := MotionEvent{Gesture: g.Name, Steps: len(g.Steps), Completed: completed, At: time.Now()}
	if runErr != nil {
		event.Failure = runErr.Error()
	}
	c.record(event)
	return runErr
}

func (c *Controller) record(event MotionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.recorder.RecordMotion(ctx, event); err != nil {
		c.log.WithError(err).Debug("telemetry record failed")
	}
}

// runStep issues one motion step: clamp, send, await the matching ack,
// record state, honor the hold delay. Any failure aborts the remaining
// sequence; continuing on a channel that may be desynchronized risks
// overlapping motions.
func (c *Controller) runStep(ctx context.Context, gesture string, index int, step rufus.MotionStep) error {
	angle, err := c.registry.Clamp(step.Address, step.Angle)
	if err != nil {
		return &StepError{Gesture: gesture, Index: index, Err: err}
	}
	if angle != step.Angle {
		c.log.WithFields(logrus.Fields{
			"address":   step.Address,
			"requested": step.Angle,
			"clamped":   angle,
		}).Debug("angle clamped")
	}

	frame := rufus.CommandFrame{Address: step.Address, Angle: angle}
	start := time.Now()
	if err := c.transport.Send(frame); err != nil {
		return &StepError{Gesture: gesture, Index: index, Err: err}
	}
	c.metrics.CommandsSent.Inc()

	ack, err := c.transport.Receive(ctx, c.ackTimeout)
	if err != nil {
		c.countReceiveFailure(err)
		return &StepError{Gesture: gesture, Index: index, Err: err}
	}
	if !ack.Matches(frame) {
		return &StepError{
			Gesture: gesture,
			Index:   index,
			Err:     fmt.Errorf("ack for address %d while awaiting %d", ack.Address, frame.Address),
		}
	}
	c.metrics.StepDuration.Observe(time.Since(start).Seconds())

	c.stateMu.Lock()
	c.state[frame.Address] = angle
	c.stateMu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return &StepError{Gesture: gesture, Index: index, Err: ctx.Err()}
		}
	}
	return nil
}

func (c *Controller) countReceiveFailure(err error) {
	var pe *ParseError
	if errors.As(err, &pe) {
		c.metrics.AckParseErrors.Inc()
		return
	}
	c.metrics.AckTimeouts.Inc()
}
