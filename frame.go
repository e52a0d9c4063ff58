package rufus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ReadyBanner is printed once by the executor when its servo drivers are
// initialized. It is informational, never an acknowledgment.
const ReadyBanner = "READY"

const ackPrefix = "OK"

// ErrNotAck marks a line that is not part of the ack protocol at all, such
// as the boot banner or a diagnostic print. Callers should discard these
// lines instead of treating them as protocol errors.
var ErrNotAck = errors.New("not an ack line")

// CommandFrame is one servo instruction on the wire: "<address>:<angle>\n".
type CommandFrame struct {
	Address int
	Angle   int
}

// Encode renders the frame including its line terminator.
func (f CommandFrame) Encode() string {
	return strconv.Itoa(f.Address) + ":" + strconv.Itoa(f.Angle) + "\n"
}

// AckFrame is the executor's response to one command: "OK:<address>:<angle>\n".
type AckFrame struct {
	Address int
	Angle   int
}

// Encode renders the ack including its line terminator.
func (f AckFrame) Encode() string {
	return ackPrefix + ":" + strconv.Itoa(f.Address) + ":" + strconv.Itoa(f.Angle) + "\n"
}

// Matches reports whether the ack answers the given command. The executor
// echoes the angle it was asked for, after its own clamp, so only the
// address is authoritative.
func (f AckFrame) Matches(cmd CommandFrame) bool {
	return f.Address == cmd.Address
}

// ParseCommand parses a command line received by the executor. The line
// terminator may be present or already stripped.
func ParseCommand(line string) (CommandFrame, error) {
	line = trimLine(line)
	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return CommandFrame{}, fmt.Errorf("malformed command %q", line)
	}
	address, err := strconv.Atoi(parts[0])
	if err != nil {
		return CommandFrame{}, fmt.Errorf("malformed command %q: bad address", line)
	}
	angle, err := strconv.Atoi(parts[1])
	if err != nil {
		return CommandFrame{}, fmt.Errorf("malformed command %q: bad angle", line)
	}
	return CommandFrame{Address: address, Angle: angle}, nil
}

// ParseAck parses an ack line received by the host. Lines without the OK
// prefix return ErrNotAck so the caller can skip executor chatter; lines
// with the prefix but broken fields return a parse error, which means the
// channel state is suspect.
func ParseAck(line string) (AckFrame, error) {
	line = trimLine(line)
	parts := strings.Split(line, ":")
	if parts[0] != ackPrefix {
		return AckFrame{}, fmt.Errorf("%w: %q", ErrNotAck, line)
	}
	if len(parts) != 3 {
		return AckFrame{}, fmt.Errorf("malformed ack %q", line)
	}
	address, err := strconv.Atoi(parts[1])
	if err != nil {
		return AckFrame{}, fmt.Errorf("malformed ack %q: bad address", line)
	}
	angle, err := strconv.Atoi(parts[2])
	if err != nil {
		return AckFrame{}, fmt.Errorf("malformed ack %q: bad angle", line)
	}
	return AckFrame{Address: address, Angle: angle}, nil
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}
