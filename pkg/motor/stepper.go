package motor

import (
	"sync"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/safety"
)

// StepperDriver writes clamped step commands to the stepper channels.
type StepperDriver struct {
	mu     sync.Mutex
	smon   *safety.StepperMonitor
	io     hal.IO
	logger *log.Logger
	moving bool
}

// NewStepperDriver creates a stepper driver bound to a stepper monitor and
// a HAL.
func NewStepperDriver(smon *safety.StepperMonitor, io hal.IO, logger *log.Logger) *StepperDriver {
	return &StepperDriver{smon: smon, io: io, logger: logger.WithPrefix("stepper")}
}

// Move clamps and writes a step rate and a signed relative step count.
// Returns the values actually applied.
func (d *StepperDriver) Move(rate, steps int) (appliedRate, appliedSteps int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	appliedRate = d.smon.ClampSpeed(rate)
	appliedSteps = d.smon.ClampSteps(steps)
	if appliedRate != rate || appliedSteps != steps {
		d.logger.Debug("move clamped from (%d, %d) to (%d, %d)", rate, steps, appliedRate, appliedSteps)
	}

	if err = d.io.Set(hal.ChanStepRate, int32(appliedRate)); err != nil {
		return 0, 0, err
	}
	if err = d.io.Set(hal.ChanStepTarget, int32(appliedSteps)); err != nil {
		return 0, 0, err
	}

	active := appliedRate > 0 && appliedSteps != 0
	if active && !d.moving {
		d.smon.Base().MotorStarted()
		d.moving = true
	} else if !active && d.moving {
		d.smon.Base().MotorStopped()
		d.moving = false
	}
	return appliedRate, appliedSteps, nil
}

// Stop zeroes the step rate and target.
func (d *StepperDriver) Stop() error {
	_, _, err := d.Move(0, 0)
	return err
}
