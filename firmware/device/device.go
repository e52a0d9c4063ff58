//go:build tinygo

// Package device is the hardware half of the executor: hobby servos on
// PWM pins and the USB serial line.
package device

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/servo"
)

// Device drives the robot's servos, keyed by their protocol address.
type Device struct {
	servos map[int]servo.Servo
}

// New attaches every configured servo and parks it at its rest angle.
func New(cfg Config) (Device, error) {
	servos := make(map[int]servo.Servo, len(cfg.Servos))
	for _, sc := range cfg.Servos {
		s, err := servo.New(sc.PWM, sc.Pin)
		if err != nil {
			return Device{}, errors.New("error creating servo: " + err.Error())
		}
		if err := s.SetAngle(sc.RestAngle); err != nil {
			return Device{}, errors.New("error setting rest angle: " + err.Error())
		}
		servos[sc.Address] = s
	}
	return Device{servos: servos}, nil
}

// SetAngle moves the servo at the given protocol address.
func (d Device) SetAngle(address, angle int) error {
	s, ok := d.servos[address]
	if !ok {
		return errors.New("no servo at address")
	}
	return s.SetAngle(angle)
}

// ReadByte blocks until a byte arrives on the serial line. The UART buffer
// reports an error when empty, so poll with a short sleep.
func (d Device) ReadByte() (byte, error) {
	for {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		return b, nil
	}
}

// WriteString writes s to the serial line.
func (d Device) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		_ = machine.Serial.WriteByte(s[i])
	}
}
