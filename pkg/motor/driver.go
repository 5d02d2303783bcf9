// Package motor drives the actuator outputs through the safety interlock.
// Every value is clamped by the monitor before it reaches a hardware
// register, and zero/non-zero transitions keep the monitor's continuous-run
// accounting accurate.
package motor

import (
	"sync"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/safety"
)

// Driver writes clamped PWM values to the motor channel.
type Driver struct {
	mu      sync.Mutex
	mon     *safety.Monitor
	io      hal.IO
	logger  *log.Logger
	running bool
}

// NewDriver creates a motor driver bound to a monitor and a HAL.
func NewDriver(mon *safety.Monitor, io hal.IO, logger *log.Logger) *Driver {
	return &Driver{mon: mon, io: io, logger: logger.WithPrefix("motor")}
}

// SetThrottle clamps the requested PWM value and writes it to hardware.
// Returns the value actually applied.
func (d *Driver) SetThrottle(requested int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	applied := d.mon.ClampOutput(requested)
	if applied != requested {
		d.logger.Debug("throttle clamped from %d to %d", requested, applied)
	}

	if err := d.io.Set(hal.ChanMotorPWM, int32(applied)); err != nil {
		return 0, err
	}

	if applied > 0 && !d.running {
		d.mon.MotorStarted()
		d.running = true
	} else if applied == 0 && d.running {
		d.mon.MotorStopped()
		d.running = false
	}
	return applied, nil
}

// Stop forces the motor output to zero. Used on latch transitions so an
// already-spinning motor does not coast on its last commanded value.
func (d *Driver) Stop() error {
	_, err := d.SetThrottle(0)
	return err
}

// Running reports whether the driver last applied a non-zero output.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
