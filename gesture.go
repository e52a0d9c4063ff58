package rufus

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrUnknownGesture = errors.New("unknown gesture")

// MotionStep is one atomic instruction in a gesture: move the servo at
// Address to Angle, then hold for Delay before the next step is issued.
// The angle is as authored; it is clamped against the registry when the
// step executes.
type MotionStep struct {
	Address int
	Angle   int
	Delay   time.Duration
}

// Gesture is a named, ordered sequence of motion steps. A single-step
// gesture is structurally identical to a raw servo move.
type Gesture struct {
	Name  string
	Steps []MotionStep
}

// Library maps gesture names to their step sequences. Step data is authored,
// not computed, and the library is read-only after construction.
type Library struct {
	gestures map[string]Gesture
	aliases  map[string]string
}

// NewLibrary validates every gesture against the registry: empty sequences
// and steps referencing unregistered addresses fail here, at startup, not
// mid-motion.
func NewLibrary(reg *Registry, gestures []Gesture) (*Library, error) {
	byName := make(map[string]Gesture, len(gestures))
	for _, g := range gestures {
		key := strings.ToLower(g.Name)
		if key == "" {
			return nil, errors.New("gesture with empty name")
		}
		if _, ok := byName[key]; ok {
			return nil, fmt.Errorf("duplicate gesture %q", g.Name)
		}
		if len(g.Steps) == 0 {
			return nil, fmt.Errorf("gesture %q has no steps", g.Name)
		}
		for i, step := range g.Steps {
			if _, ok := reg.Lookup(step.Address); !ok {
				return nil, fmt.Errorf("gesture %q step %d: %w: address %d", g.Name, i, ErrUnknownServo, step.Address)
			}
		}
		byName[key] = g
	}
	return &Library{gestures: byName, aliases: map[string]string{}}, nil
}

// AddAlias registers an alternate name for an existing gesture. The voice
// layer classifies intent as yes/no/neutral, which map onto nod and shake.
func (l *Library) AddAlias(alias, target string) error {
	key := strings.ToLower(target)
	if _, ok := l.gestures[key]; !ok {
		return fmt.Errorf("alias %q: %w: %q", alias, ErrUnknownGesture, target)
	}
	l.aliases[strings.ToLower(alias)] = key
	return nil
}

// Resolve finds a gesture by name. Matching is case-insensitive and exact:
// an unknown name fails loudly rather than substituting a default.
func (l *Library) Resolve(name string) (Gesture, error) {
	key := strings.ToLower(name)
	if target, ok := l.aliases[key]; ok {
		key = target
	}
	g, ok := l.gestures[key]
	if !ok {
		return Gesture{}, fmt.Errorf("%w: %q", ErrUnknownGesture, name)
	}
	return g, nil
}

// Names returns all gesture names, aliases excluded, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.gestures))
	for name := range l.gestures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StepDelay is the default hold between gesture steps. It is authored
// timing tuned to the stock servos' travel speed, not a derived constant.
const StepDelay = 150 * time.Millisecond

func step(address, angle int) MotionStep {
	return MotionStep{Address: address, Angle: angle, Delay: StepDelay}
}

// DefaultGestures returns the built-in gesture set for the stock robot.
func DefaultGestures() []Gesture {
	pan, left, right := PanAddress, LeftArmAddress, RightArmAddress
	return []Gesture{
		{Name: "wave", Steps: []MotionStep{
			step(pan, 90), step(right, 70), step(right, 40),
			step(right, 70), step(right, 40), step(right, 70),
			step(right, 40), step(left, 90), step(right, 90),
		}},
		{Name: "nod", Steps: []MotionStep{
			step(pan, 105), step(pan, 75), step(pan, 105), step(pan, 75), step(pan, 90),
		}},
		{Name: "shake", Steps: []MotionStep{
			step(pan, 65), step(pan, 115), step(pan, 65), step(pan, 115), step(pan, 90),
		}},
		{Name: "happy", Steps: []MotionStep{
			step(left, 170), step(right, 170), step(pan, 75),
			step(pan, 105), step(pan, 75), step(pan, 105),
			step(left, 90), step(right, 90), step(pan, 90),
		}},
		{Name: "sad", Steps: []MotionStep{
			step(pan, 50), step(left, 60), step(right, 60),
			step(pan, 50), step(left, 90), step(right, 90), step(pan, 90),
		}},
		{Name: "excited", Steps: []MotionStep{
			step(left, 170), step(right, 170), step(pan, 60),
			step(pan, 120), step(left, 90), step(right, 90), step(pan, 90),
		}},
		{Name: "curious", Steps: []MotionStep{
			step(pan, 70), step(left, 110), step(right, 110),
			step(pan, 70), step(left, 90), step(right, 90), step(pan, 90),
		}},
		{Name: "rest", Steps: []MotionStep{
			step(pan, 90), step(left, 90), step(right, 90),
		}},
		{Name: "neutral", Steps: []MotionStep{
			step(pan, 90), step(left, 90), step(right, 90),
		}},
	}
}

// DefaultLibrary builds the built-in gestures with the yes/no intent
// aliases used by the voice layer.
func DefaultLibrary(reg *Registry) (*Library, error) {
	lib, err := NewLibrary(reg, DefaultGestures())
	if err != nil {
		return nil, err
	}
	if err := lib.AddAlias("yes", "nod"); err != nil {
		return nil, err
	}
	if err := lib.AddAlias("no", "shake"); err != nil {
		return nil, err
	}
	return lib, nil
}
