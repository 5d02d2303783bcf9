// Stepper hardware variant of the safety interlock.
//
// The stepper monitor layers step-rate and step-count clamping plus a
// second, shorter host heartbeat timeout on top of the base Monitor's
// latch. It owns no latch of its own: one emergency stop covers both
// output paths.
package safety

import (
	"sync"
	"time"
)

// StepperConfig holds the stepper hardware limit parameters. Replaced
// wholesale via UpdateConfig, same discipline as Config.
type StepperConfig struct {
	// MaxStepRate is the maximum step rate in steps per second.
	MaxStepRate int

	// MaxContinuousSteps bounds a single move, in either direction.
	MaxContinuousSteps int

	// HostTimeout is the stepper-path heartbeat timeout. It is normally
	// shorter than the base Config.HostTimeout.
	HostTimeout time.Duration

	// MaxCoilCurrent is the per-coil current limit in amps.
	MaxCoilCurrent float64
}

// DefaultStepperConfig returns the factory stepper limits.
func DefaultStepperConfig() StepperConfig {
	return StepperConfig{
		MaxStepRate:        2000,
		MaxContinuousSteps: 200000,
		HostTimeout:        2 * time.Second,
		MaxCoilCurrent:     1.2,
	}
}

// StepperMonitor clamps stepper commands against the shared emergency
// latch of a base Monitor.
type StepperMonitor struct {
	mu   sync.Mutex
	cfg  StepperConfig
	base *Monitor
}

// NewStepper creates a stepper monitor sharing the base monitor's latch,
// heartbeat timer, and violation counter.
func NewStepper(base *Monitor, cfg StepperConfig) *StepperMonitor {
	return &StepperMonitor{cfg: cfg, base: base}
}

// Base returns the underlying Monitor.
func (s *StepperMonitor) Base() *Monitor {
	return s.base
}

// ClampSpeed clips a requested step rate into [0, MaxStepRate].
// Returns 0 while the latch is set.
func (s *StepperMonitor) ClampSpeed(requested int) int {
	if s.base.Latched() {
		return 0
	}

	s.mu.Lock()
	maxRate := s.cfg.MaxStepRate
	s.mu.Unlock()

	if requested > maxRate {
		return maxRate
	}
	if requested < 0 {
		return 0
	}
	return requested
}

// ClampSteps clips a signed step count into the symmetric range
// [-MaxContinuousSteps, +MaxContinuousSteps]. Returns 0 while the latch
// is set.
func (s *StepperMonitor) ClampSteps(requested int) int {
	if s.base.Latched() {
		return 0
	}

	s.mu.Lock()
	maxSteps := s.cfg.MaxContinuousSteps
	s.mu.Unlock()

	if requested > maxSteps {
		return maxSteps
	}
	if requested < -maxSteps {
		return -maxSteps
	}
	return requested
}

// Check runs the stepper heartbeat timeout against the shared last host
// command time, then delegates to the base Monitor's Check. On a stepper
// timeout it latches, counts a violation, and returns false immediately.
//
// Note: with the stepper timeout shorter than the base timeout, the base
// monitor's own heartbeat check can never fire while this path is active.
// That shadowing matches the original firmware and is kept as-is.
func (s *StepperMonitor) Check() bool {
	s.mu.Lock()
	timeout := s.cfg.HostTimeout
	s.mu.Unlock()

	if s.base.heartbeatExpired(timeout) {
		return false
	}
	return s.base.Check()
}

// UpdateConfig atomically replaces the stepper limit snapshot. Unlike the
// base monitor there is no ceiling to recompute; the new limits simply
// apply to future clamps and checks.
func (s *StepperMonitor) UpdateConfig(cfg StepperConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Config returns the current stepper limit snapshot.
func (s *StepperMonitor) Config() StepperConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
