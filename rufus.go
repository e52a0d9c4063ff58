// Package rufus holds the data model and wire protocol shared between the
// host-side controller and the executor firmware: the servo registry, the
// gesture library, and the line-oriented command/ack frames.
package rufus

import (
	"errors"
	"fmt"
	"sort"
)

// Absolute travel limits of the hobby servos. The firmware clamps to these
// independently of the per-servo ranges enforced on the host.
const (
	AngleMin = 0
	AngleMax = 180
)

// Control-line addresses for the stock robot build.
const (
	PanAddress      = 2
	LeftArmAddress  = 4
	RightArmAddress = 5
)

var ErrUnknownServo = errors.New("unknown servo")

// Servo describes one addressable servo: its control-line address, safe
// angle range, and rest angle. Values are degrees.
type Servo struct {
	Name    string
	Address int
	Min     int
	Rest    int
	Max     int
}

func (s Servo) validate() error {
	if s.Address <= 0 {
		return fmt.Errorf("servo %q: invalid address %d", s.Name, s.Address)
	}
	if s.Min < AngleMin || s.Max > AngleMax {
		return fmt.Errorf("servo %q: range [%d,%d] exceeds [%d,%d]", s.Name, s.Min, s.Max, AngleMin, AngleMax)
	}
	if s.Min > s.Rest || s.Rest > s.Max {
		return fmt.Errorf("servo %q: rest %d outside range [%d,%d]", s.Name, s.Rest, s.Min, s.Max)
	}
	return nil
}

// Clamp saturates angle into this servo's safe range.
func (s Servo) Clamp(angle int) int {
	if angle < s.Min {
		return s.Min
	}
	if angle > s.Max {
		return s.Max
	}
	return angle
}

// ClampAngle saturates angle into the absolute actuator range. The firmware
// applies this device-side regardless of what the host already clamped.
func ClampAngle(angle int) int {
	if angle < AngleMin {
		return AngleMin
	}
	if angle > AngleMax {
		return AngleMax
	}
	return angle
}

// Registry is the static table of addressable servos. It is read-only after
// construction, so concurrent lookups need no locking.
type Registry struct {
	servos map[int]Servo
}

// NewRegistry validates each servo's range invariants and rejects duplicate
// addresses.
func NewRegistry(servos []Servo) (*Registry, error) {
	byAddr := make(map[int]Servo, len(servos))
	for _, s := range servos {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if prev, ok := byAddr[s.Address]; ok {
			return nil, fmt.Errorf("servos %q and %q share address %d", prev.Name, s.Name, s.Address)
		}
		byAddr[s.Address] = s
	}
	return &Registry{servos: byAddr}, nil
}

// Lookup returns the servo at the given address.
func (r *Registry) Lookup(address int) (Servo, bool) {
	s, ok := r.servos[address]
	return s, ok
}

// LookupName returns the servo with the given name. The web and voice
// layers address servos by name; the wire protocol uses addresses.
func (r *Registry) LookupName(name string) (Servo, bool) {
	for _, s := range r.servos {
		if s.Name == name {
			return s, true
		}
	}
	return Servo{}, false
}

// Clamp saturates angle into the safe range of the servo at address.
// Out-of-range requests are expected (a slider at its extreme) and are
// silently corrected rather than rejected.
func (r *Registry) Clamp(address, angle int) (int, error) {
	s, ok := r.servos[address]
	if !ok {
		return 0, fmt.Errorf("%w: address %d", ErrUnknownServo, address)
	}
	return s.Clamp(angle), nil
}

// Servos returns all registered servos ordered by address.
func (r *Registry) Servos() []Servo {
	out := make([]Servo, 0, len(r.servos))
	for _, s := range r.servos {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// DefaultServos returns the stock robot configuration: a pan servo for the
// head and one servo per arm. The arm linkage binds below 50 degrees, hence
// the narrower range.
func DefaultServos() []Servo {
	return []Servo{
		{Name: "pan", Address: PanAddress, Min: 0, Rest: 90, Max: 180},
		{Name: "left_arm", Address: LeftArmAddress, Min: 50, Rest: 90, Max: 180},
		{Name: "right_arm", Address: RightArmAddress, Min: 50, Rest: 90, Max: 180},
	}
}
