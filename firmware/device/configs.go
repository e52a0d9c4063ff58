//go:build tinygo

package device

import (
	"machine"

	"tinygo.org/x/drivers/servo"
)

// ServoConfig binds one protocol address to a PWM pin.
type ServoConfig struct {
	Address   int
	Pin       machine.Pin
	PWM       servo.PWM
	RestAngle int
}

// Config has the full servo layout for one robot build.
type Config struct {
	Servos []ServoConfig
}
