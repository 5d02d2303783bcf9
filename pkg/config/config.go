// Package config loads and validates the device limits file.
//
// The file is YAML with one section per subsystem. Durations are given in
// milliseconds to match the original firmware's configuration units.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flightctl-go-migration/pkg/errors"
	"flightctl-go-migration/pkg/safety"
)

// File is the top-level limits file.
type File struct {
	Safety    SafetySection    `yaml:"safety"`
	Stepper   StepperSection   `yaml:"stepper"`
	HAL       HALSection       `yaml:"hal"`
	Host      HostSection      `yaml:"host"`
	Telemetry TelemetrySection `yaml:"telemetry"`
}

// SafetySection configures the base safety monitor.
type SafetySection struct {
	MaxOutput       int     `yaml:"max_output"`
	EmergencyStopCm int     `yaml:"emergency_stop_cm"`
	SpeedReduceCm   int     `yaml:"speed_reduce_cm"`
	MaxContinuousMs int     `yaml:"max_continuous_ms"`
	HostTimeoutMs   int     `yaml:"host_timeout_ms"`
	MinBatteryVolts float64 `yaml:"min_battery_volts"`
}

// StepperSection configures the stepper hardware variant.
type StepperSection struct {
	Enabled            bool    `yaml:"enabled"`
	MaxStepRate        int     `yaml:"max_step_rate"`
	MaxContinuousSteps int     `yaml:"max_continuous_steps"`
	HostTimeoutMs      int     `yaml:"host_timeout_ms"`
	MaxCoilCurrent     float64 `yaml:"max_coil_current"`
}

// HALSection configures the MCU register bridge.
type HALSection struct {
	// Device is the serial device of the register bridge. Empty selects
	// the in-memory simulation.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// HostSection configures the host command channel.
type HostSection struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// TelemetrySection configures the status server.
type TelemetrySection struct {
	Addr string `yaml:"addr"`
}

// Default returns a File populated with the factory limits.
func Default() *File {
	sc := safety.DefaultConfig()
	st := safety.DefaultStepperConfig()
	return &File{
		Safety: SafetySection{
			MaxOutput:       sc.MaxOutput,
			EmergencyStopCm: sc.EmergencyStopCm,
			SpeedReduceCm:   sc.SpeedReduceCm,
			MaxContinuousMs: int(sc.MaxContinuous / time.Millisecond),
			HostTimeoutMs:   int(sc.HostTimeout / time.Millisecond),
			MinBatteryVolts: sc.MinBatteryVolts,
		},
		Stepper: StepperSection{
			MaxStepRate:        st.MaxStepRate,
			MaxContinuousSteps: st.MaxContinuousSteps,
			HostTimeoutMs:      int(st.HostTimeout / time.Millisecond),
			MaxCoilCurrent:     st.MaxCoilCurrent,
		},
		HAL:       HALSection{Baud: 115200},
		Host:      HostSection{Baud: 115200},
		Telemetry: TelemetrySection{Addr: ":7130"},
	}
}

// Load reads and validates a limits file. Missing sections and fields keep
// their factory defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigFileError(path, err)
	}

	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.ConfigFileError(path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the limit values for internal consistency.
func (f *File) Validate() error {
	s := f.Safety
	if s.MaxOutput <= 0 {
		return errors.ConfigValidationError("safety.max_output", "must be positive")
	}
	if s.EmergencyStopCm < 0 {
		return errors.ConfigValidationError("safety.emergency_stop_cm", "must not be negative")
	}
	if s.SpeedReduceCm <= s.EmergencyStopCm {
		return errors.ConfigValidationError("safety.speed_reduce_cm", "must be greater than emergency_stop_cm")
	}
	if s.MaxContinuousMs <= 0 {
		return errors.ConfigValidationError("safety.max_continuous_ms", "must be positive")
	}
	if s.HostTimeoutMs <= 0 {
		return errors.ConfigValidationError("safety.host_timeout_ms", "must be positive")
	}
	if s.MinBatteryVolts <= 0 {
		return errors.ConfigValidationError("safety.min_battery_volts", "must be positive")
	}

	if f.Stepper.Enabled {
		st := f.Stepper
		if st.MaxStepRate <= 0 {
			return errors.ConfigValidationError("stepper.max_step_rate", "must be positive")
		}
		if st.MaxContinuousSteps <= 0 {
			return errors.ConfigValidationError("stepper.max_continuous_steps", "must be positive")
		}
		if st.HostTimeoutMs <= 0 {
			return errors.ConfigValidationError("stepper.host_timeout_ms", "must be positive")
		}
		if st.MaxCoilCurrent <= 0 {
			return errors.ConfigValidationError("stepper.max_coil_current", "must be positive")
		}
	}

	return nil
}

// SafetyConfig converts the safety section into a monitor snapshot.
func (f *File) SafetyConfig() safety.Config {
	return safety.Config{
		MaxOutput:       f.Safety.MaxOutput,
		EmergencyStopCm: f.Safety.EmergencyStopCm,
		SpeedReduceCm:   f.Safety.SpeedReduceCm,
		MaxContinuous:   time.Duration(f.Safety.MaxContinuousMs) * time.Millisecond,
		HostTimeout:     time.Duration(f.Safety.HostTimeoutMs) * time.Millisecond,
		MinBatteryVolts: f.Safety.MinBatteryVolts,
	}
}

// StepperConfig converts the stepper section into a monitor snapshot.
func (f *File) StepperConfig() safety.StepperConfig {
	return safety.StepperConfig{
		MaxStepRate:        f.Stepper.MaxStepRate,
		MaxContinuousSteps: f.Stepper.MaxContinuousSteps,
		HostTimeout:        time.Duration(f.Stepper.HostTimeoutMs) * time.Millisecond,
		MaxCoilCurrent:     f.Stepper.MaxCoilCurrent,
	}
}
