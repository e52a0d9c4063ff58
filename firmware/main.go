//go:build tinygo

package main

import (
	"machine"

	"github.com/rufuslabs/rufus"
	"github.com/rufuslabs/rufus/firmware/device"
	"github.com/rufuslabs/rufus/firmware/executor"
)

func main() {
	// GP2/GP3 share PWM slice 1 and GP4/GP5 share slice 2 on the RP2040,
	// so the two arm servos ride the same slice.
	cfg := device.Config{
		Servos: []device.ServoConfig{
			{Address: rufus.PanAddress, Pin: machine.GP2, PWM: machine.PWM1, RestAngle: 90},
			{Address: rufus.LeftArmAddress, Pin: machine.GP4, PWM: machine.PWM2, RestAngle: 90},
			{Address: rufus.RightArmAddress, Pin: machine.GP5, PWM: machine.PWM2, RestAngle: 90},
		},
	}

	d, err := device.New(cfg)
	if err != nil {
		panic(err)
	}

	executor.New(d).Run()
}
