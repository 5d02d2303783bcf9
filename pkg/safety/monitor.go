// Package safety implements the firmware-level safety interlock for the
// flight controller. It enforces hard limits on motor output that the host
// software cannot override: PWM ceiling clamping, emergency stop on obstacle
// proximity, proportional speed reduction near obstacles, continuous-run
// timeout, host heartbeat timeout, and battery voltage cutoff.
//
// The Monitor is the last line of defense. Once the emergency latch is set,
// every clamp returns zero until an explicit Reset.
package safety

import (
	"sync"
	"time"
)

// State describes the monitor's operational state.
type State int

const (
	// StateNormal indicates full output is permitted.
	StateNormal State = iota

	// StateSpeedReduced indicates the output ceiling is lowered due to
	// obstacle proximity.
	StateSpeedReduced

	// StateEmergencyStopped indicates the emergency latch is set and all
	// output is forced to zero.
	StateEmergencyStopped
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateSpeedReduced:
		return "speed_reduced"
	case StateEmergencyStopped:
		return "emergency_stopped"
	default:
		return "unknown"
	}
}

// Config holds the safety limit parameters. It is treated as an immutable
// snapshot: UpdateConfig replaces the whole value, individual fields are
// never mutated in place.
type Config struct {
	// MaxOutput is the maximum allowed motor PWM value.
	MaxOutput int

	// EmergencyStopCm is the obstacle distance at or below which the
	// monitor latches an emergency stop.
	EmergencyStopCm int

	// SpeedReduceCm is the distance at which the output ceiling starts
	// ramping down toward zero.
	SpeedReduceCm int

	// MaxContinuous is the maximum continuous motor runtime.
	MaxContinuous time.Duration

	// HostTimeout is the host heartbeat timeout.
	HostTimeout time.Duration

	// MinBatteryVolts is the battery cutoff voltage.
	MinBatteryVolts float64
}

// DefaultConfig returns the factory limit parameters.
func DefaultConfig() Config {
	return Config{
		MaxOutput:       200,
		EmergencyStopCm: 8,
		SpeedReduceCm:   20,
		MaxContinuous:   30 * time.Second,
		HostTimeout:     5 * time.Second,
		MinBatteryVolts: 3.0,
	}
}

// fullBatteryVolts is the assumed charge level before the first reading.
const fullBatteryVolts = 4.2

// Monitor is the safety interlock state machine. A single coarse mutex
// guards both the config snapshot and the runtime state; every operation is
// non-blocking and O(1).
type Monitor struct {
	mu sync.Mutex

	cfg Config

	latched      bool
	motorStart   time.Time
	lastHostCmd  time.Time
	ceiling      int
	violations   int
	motorRunning bool
	batteryVolts float64

	// now is replaceable for deterministic tests.
	now func() time.Time
}

// New creates a Monitor with the latch clear, the ceiling at the configured
// maximum, and the heartbeat timer starting from now.
func New(cfg Config) *Monitor {
	m := &Monitor{
		cfg:          cfg,
		ceiling:      cfg.MaxOutput,
		batteryVolts: fullBatteryVolts,
		now:          time.Now,
	}
	m.lastHostCmd = m.now()
	return m
}

// ClampOutput clips a requested PWM value into the currently safe range.
// Returns 0 while the emergency latch is set. Out-of-range requests are
// silently clipped; there is no error path.
func (m *Monitor) ClampOutput(requested int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latched {
		return 0
	}

	clamped := requested
	if clamped > m.ceiling {
		clamped = m.ceiling
	}
	if clamped > m.cfg.MaxOutput {
		clamped = m.cfg.MaxOutput
	}
	if clamped < 0 {
		clamped = 0
	}
	return clamped
}

// HostHeartbeat records that a valid host command arrived. Call on every
// inbound command.
func (m *Monitor) HostHeartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHostCmd = m.now()
}

// MotorStarted records the start of continuous motor runtime accounting.
func (m *Monitor) MotorStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.motorStart = m.now()
	m.motorRunning = true
}

// MotorStopped ends continuous motor runtime accounting.
func (m *Monitor) MotorStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.motorRunning = false
}

// EmergencyStop sets the latch and forces the output ceiling to zero.
// Idempotent, and can never fail: this is the single fail-safe primitive.
func (m *Monitor) EmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	m.latched = true
	m.ceiling = 0
}

// Reset clears the emergency latch, restores the ceiling to the configured
// maximum, and clears the motor-running flag. The violation counter is a
// cumulative diagnostic and survives the reset. Callable at any time.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latched = false
	m.ceiling = m.cfg.MaxOutput
	m.motorRunning = false
}

// Check evaluates the time-based triggers. Run once per control cycle.
// Both the heartbeat and the continuous-run check may fire in the same
// cycle, incrementing the violation counter twice. Returns false iff the
// latch is set when the call completes.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if now.Sub(m.lastHostCmd) > m.cfg.HostTimeout {
		m.stopLocked()
		m.violations++
	}

	if m.motorRunning && now.Sub(m.motorStart) > m.cfg.MaxContinuous {
		m.stopLocked()
		m.violations++
	}

	return !m.latched
}

// UpdateDistance feeds an obstacle distance reading. At or below the
// emergency threshold it latches (without touching the violation counter).
// Inside the speed-reduce band the ceiling ramps linearly between zero and
// the configured maximum, using truncating integer division to stay
// bit-exact with the original firmware's map() call. Beyond the band the
// ceiling is restored to the maximum.
func (m *Monitor) UpdateDistance(distanceCm int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if distanceCm <= m.cfg.EmergencyStopCm {
		m.stopLocked()
		return
	}

	// While latched the ceiling stays pinned at zero; a far reading must
	// not re-open output without an explicit Reset.
	if m.latched {
		return
	}

	if distanceCm <= m.cfg.SpeedReduceCm {
		span := m.cfg.SpeedReduceCm - m.cfg.EmergencyStopCm
		m.ceiling = (distanceCm - m.cfg.EmergencyStopCm) * m.cfg.MaxOutput / span
	} else {
		m.ceiling = m.cfg.MaxOutput
	}
}

// UpdateBattery feeds a battery voltage reading. Below the configured
// minimum it latches (without touching the violation counter). The reading
// is recorded either way.
func (m *Monitor) UpdateBattery(volts float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batteryVolts = volts
	if volts < m.cfg.MinBatteryVolts {
		m.stopLocked()
	}
}

// UpdateConfig atomically replaces the limit snapshot. If the latch is
// clear, the ceiling resets to the new maximum; any distance-based
// reduction in effect is discarded until the next distance reading.
func (m *Monitor) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	if !m.latched {
		m.ceiling = cfg.MaxOutput
	}
}

// Config returns the current limit snapshot.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Latched reports whether the emergency latch is set.
func (m *Monitor) Latched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latched
}

// Violations returns the cumulative safety-trigger count. Diagnostic only;
// it never decreases and is never used in control decisions.
func (m *Monitor) Violations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations
}

// Ceiling returns the current output ceiling.
func (m *Monitor) Ceiling() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ceiling
}

// State derives the operational state from the latch and ceiling.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Monitor) stateLocked() State {
	switch {
	case m.latched:
		return StateEmergencyStopped
	case m.ceiling < m.cfg.MaxOutput:
		return StateSpeedReduced
	default:
		return StateNormal
	}
}

// heartbeatExpired checks the last host command time against an alternate
// timeout. On expiry it latches and counts a violation. Used by the stepper
// variant, which runs a shorter timeout than the base config.
func (m *Monitor) heartbeatExpired(timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastHostCmd) > timeout {
		m.stopLocked()
		m.violations++
		return true
	}
	return false
}

// Status is a point-in-time snapshot for reporting.
type Status struct {
	State        string  `json:"state"`
	Latched      bool    `json:"latched"`
	Ceiling      int     `json:"ceiling"`
	MaxOutput    int     `json:"max_output"`
	Violations   int     `json:"violations"`
	MotorRunning bool    `json:"motor_running"`
	BatteryVolts float64 `json:"battery_volts"`
}

// GetStatus returns the current status snapshot.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		State:        m.stateLocked().String(),
		Latched:      m.latched,
		Ceiling:      m.ceiling,
		MaxOutput:    m.cfg.MaxOutput,
		Violations:   m.violations,
		MotorRunning: m.motorRunning,
		BatteryVolts: m.batteryVolts,
	}
}
