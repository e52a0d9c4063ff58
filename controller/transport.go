package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/rufuslabs/rufus"
)

// Transport is the line-oriented command channel to the executor. It is an
// interface so sequencer tests can script acknowledgments without hardware.
type Transport interface {
	// Send writes one command frame. The frame is written in a single
	// Write call so a cancelled caller never leaves half a frame on the line.
	Send(rufus.CommandFrame) error

	// Receive returns the next ack within timeout, discarding unrelated
	// lines such as the boot banner and diagnostics.
	Receive(ctx context.Context, timeout time.Duration) (rufus.AckFrame, error)

	// Drain discards lines buffered while no command was in flight, such
	// as an ack that arrived after its command was already abandoned.
	Drain()

	Close() error
}

// LineTransport drives a serial link (or any ReadWriteCloser, for tests)
// with the newline-framed protocol. A reader goroutine splits incoming
// bytes into lines; Receive and WaitReady consume them.
type LineTransport struct {
	rwc   io.ReadWriteCloser
	lines chan string
	log   *logrus.Logger
}

// Dial opens the serial port at the given baud rate and starts the reader.
// Callers should WaitReady before issuing motion requests, since commands
// sent while the executor initializes its drivers are dropped.
func Dial(portName string, baud int, log *logrus.Logger) (*LineTransport, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return NewLineTransport(port, log), nil
}

// NewLineTransport wraps an already-open channel.
func NewLineTransport(rwc io.ReadWriteCloser, log *logrus.Logger) *LineTransport {
	if log == nil {
		log = logrus.New()
	}
	t := &LineTransport{
		rwc:   rwc,
		lines: make(chan string, 16),
		log:   log,
	}
	go t.readLines()
	return t
}

func (t *LineTransport) readLines() {
	defer close(t.lines)
	scanner := bufio.NewScanner(t.rwc)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case t.lines <- line:
		default:
			// nobody is consuming; blocking here would keep the goroutine
			// alive past Close
			t.log.WithField("line", line).Debug("line buffer full, dropping")
		}
	}
	if err := scanner.Err(); err != nil {
		t.log.WithError(err).Warn("serial read ended")
	}
}

// Send writes one command frame.
func (t *LineTransport) Send(frame rufus.CommandFrame) error {
	if _, err := io.WriteString(t.rwc, frame.Encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkClosed, err)
	}
	return nil
}

// Receive returns the next ack frame. Non-protocol lines are logged at
// debug level and skipped. A line that claims to be an ack but does not
// parse returns a *ParseError; the deadline returns ErrAckTimeout.
func (t *LineTransport) Receive(ctx context.Context, timeout time.Duration) (rufus.AckFrame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return rufus.AckFrame{}, ErrLinkClosed
			}
			ack, err := rufus.ParseAck(line)
			if errors.Is(err, rufus.ErrNotAck) {
				t.log.WithField("line", line).Debug("skipping non-protocol line")
				continue
			}
			if err != nil {
				return rufus.AckFrame{}, &ParseError{Line: line, Err: err}
			}
			return ack, nil
		case <-timer.C:
			return rufus.AckFrame{}, ErrAckTimeout
		case <-ctx.Done():
			return rufus.AckFrame{}, ctx.Err()
		}
	}
}

// Drain discards every buffered line. The controller drains when it takes
// the busy gate: anything buffered at that point is stale, and an ack left
// over from a timed-out command would otherwise pass for the ack of the
// next command to that servo.
func (t *LineTransport) Drain() {
	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return
			}
			t.log.WithField("line", line).Debug("discarding stale line")
		default:
			return
		}
	}
}

// WaitReady blocks until the executor prints its boot banner, bounded by
// timeout. Lines before the banner are discarded.
func (t *LineTransport) WaitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return ErrLinkClosed
			}
			if line == rufus.ReadyBanner {
				t.log.Info("executor ready")
				return nil
			}
			t.log.WithField("line", line).Debug("waiting for ready banner")
		case <-timer.C:
			return fmt.Errorf("%w: no ready banner", ErrAckTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the underlying channel. The reader goroutine exits on the
// resulting read error.
func (t *LineTransport) Close() error {
	return t.rwc.Close()
}
