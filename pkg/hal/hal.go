// Package hal abstracts the MCU's register-mapped hardware channels.
//
// The original firmware reached these channels through memory-mapped
// register macros. Here each channel is a typed identifier behind a small
// get/set interface, with one implementation talking to the MCU over a
// serial register bridge and another backed by an in-memory simulation.
package hal

import (
	"fmt"

	"flightctl-go-migration/pkg/errors"
)

// Channel identifies one hardware register channel.
type Channel uint8

const (
	// ChanMotorPWM is the motor PWM duty register (write).
	ChanMotorPWM Channel = iota

	// ChanStepRate is the stepper rate register in steps/sec (write).
	ChanStepRate

	// ChanStepTarget is the signed relative step-count register (write).
	ChanStepTarget

	// ChanDistanceCm is the obstacle distance register in cm (read).
	ChanDistanceCm

	// ChanBatteryMV is the battery voltage register in millivolts (read).
	ChanBatteryMV

	numChannels
)

func (c Channel) String() string {
	switch c {
	case ChanMotorPWM:
		return "motor_pwm"
	case ChanStepRate:
		return "step_rate"
	case ChanStepTarget:
		return "step_target"
	case ChanDistanceCm:
		return "distance_cm"
	case ChanBatteryMV:
		return "battery_mv"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Valid reports whether the channel is a known register.
func (c Channel) Valid() bool {
	return c < numChannels
}

// IO is the register access interface. Implementations must be safe for
// concurrent use.
type IO interface {
	// Get reads the current value of a channel.
	Get(ch Channel) (int32, error)

	// Set writes a value to a channel.
	Set(ch Channel, value int32) error
}

// checkChannel returns the shared channel validation error.
func checkChannel(ch Channel) error {
	if !ch.Valid() {
		return errors.HALChannelError(ch.String())
	}
	return nil
}
