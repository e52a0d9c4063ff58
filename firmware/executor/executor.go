// Package executor implements the firmware's command loop as an explicit
// state machine: Booting until the servo drivers are up, then Ready,
// Moving for the duration of each command, and back to Ready with exactly
// one ack. It is hardware-free so the protocol behavior can be tested on
// the host; package device supplies the TinyGo hardware underneath.
package executor

import (
	"github.com/rufuslabs/rufus"
)

// Device is the hardware surface the executor drives. ReadByte blocks
// until a byte arrives and returns an error only when the channel is gone
// for good, which ends the loop.
type Device interface {
	ReadByte() (byte, error)
	WriteString(s string)
	SetAngle(address, angle int) error
}

type State int

const (
	StateBooting State = iota
	StateReady
	StateMoving
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "Booting"
	case StateReady:
		return "Ready"
	case StateMoving:
		return "Moving"
	default:
		return "Unknown"
	}
}

type Executor struct {
	device Device
	state  State
}

func New(device Device) *Executor {
	return &Executor{device: device, state: StateBooting}
}

// State returns the current machine state.
func (e *Executor) State() State {
	return e.state
}

// Run announces readiness, then serves one command per line until the
// device's read side ends.
func (e *Executor) Run() {
	e.device.WriteString(rufus.ReadyBanner + "\n")
	e.state = StateReady

	for {
		line, err := e.readLine()
		if err != nil {
			return
		}
		e.HandleLine(line)
	}
}

// HandleLine executes one received line. Malformed frames are dropped
// with no ack; the host's timeout is the only signal. Well-formed frames
// are clamped to the absolute actuator range regardless of what the host
// already clamped, moved, and acked exactly once.
func (e *Executor) HandleLine(line string) {
	cmd, err := rufus.ParseCommand(line)
	if err != nil {
		return
	}

	e.state = StateMoving
	angle := rufus.ClampAngle(cmd.Angle)
	err = e.device.SetAngle(cmd.Address, angle)
	e.state = StateReady
	if err != nil {
		// no ack for a servo we could not drive; the host times out
		return
	}

	e.device.WriteString(rufus.AckFrame{Address: cmd.Address, Angle: angle}.Encode())
}

func (e *Executor) readLine() (string, error) {
	var buf []byte
	for {
		b, err := e.device.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}
