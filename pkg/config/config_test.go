package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"flightctl-go-migration/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sc := f.SafetyConfig()
	if sc.MaxOutput != 200 || sc.EmergencyStopCm != 8 || sc.SpeedReduceCm != 20 {
		t.Errorf("unexpected defaults: %+v", sc)
	}
	if sc.MaxContinuous != 30*time.Second || sc.HostTimeout != 5*time.Second {
		t.Errorf("unexpected default timeouts: %+v", sc)
	}
	if sc.MinBatteryVolts != 3.0 {
		t.Errorf("unexpected battery cutoff: %v", sc.MinBatteryVolts)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
safety:
  max_output: 150
  host_timeout_ms: 2500
stepper:
  enabled: true
  max_step_rate: 800
telemetry:
  addr: ":9000"
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Safety.MaxOutput != 150 {
		t.Errorf("max_output = %d, want 150", f.Safety.MaxOutput)
	}
	if got := f.SafetyConfig().HostTimeout; got != 2500*time.Millisecond {
		t.Errorf("host timeout = %v, want 2.5s", got)
	}
	// Unset fields keep their defaults.
	if f.Safety.EmergencyStopCm != 8 {
		t.Errorf("emergency_stop_cm = %d, want default 8", f.Safety.EmergencyStopCm)
	}
	if f.Stepper.MaxStepRate != 800 {
		t.Errorf("max_step_rate = %d, want 800", f.Stepper.MaxStepRate)
	}
	if f.Stepper.MaxContinuousSteps != 200000 {
		t.Errorf("max_continuous_steps = %d, want default", f.Stepper.MaxContinuousSteps)
	}
	if f.Telemetry.Addr != ":9000" {
		t.Errorf("telemetry addr = %s, want :9000", f.Telemetry.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errors.ErrConfigFile) {
		t.Errorf("expected CONFIG_FILE error, got %v", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "safety: [not a map")

	_, err := Load(path)
	if !errors.Is(err, errors.ErrConfigFile) {
		t.Errorf("expected CONFIG_FILE error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*File)
		field  string
	}{
		{"zero max output", func(f *File) { f.Safety.MaxOutput = 0 }, "safety.max_output"},
		{"negative stop distance", func(f *File) { f.Safety.EmergencyStopCm = -1 }, "safety.emergency_stop_cm"},
		{"reduce band collapsed", func(f *File) { f.Safety.SpeedReduceCm = 8 }, "safety.speed_reduce_cm"},
		{"zero run limit", func(f *File) { f.Safety.MaxContinuousMs = 0 }, "safety.max_continuous_ms"},
		{"zero host timeout", func(f *File) { f.Safety.HostTimeoutMs = 0 }, "safety.host_timeout_ms"},
		{"zero battery cutoff", func(f *File) { f.Safety.MinBatteryVolts = 0 }, "safety.min_battery_volts"},
		{"zero step rate", func(f *File) { f.Stepper.Enabled = true; f.Stepper.MaxStepRate = 0 }, "stepper.max_step_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Default()
			tt.mutate(f)

			err := f.Validate()
			if !errors.Is(err, errors.ErrConfigValidation) {
				t.Fatalf("expected CONFIG_VALIDATION error, got %v", err)
			}
			if devErr := err.(*errors.DeviceError); devErr.Field != tt.field {
				t.Errorf("field = %s, want %s", devErr.Field, tt.field)
			}
		})
	}
}

func TestStepperDisabledSkipsValidation(t *testing.T) {
	f := Default()
	f.Stepper.Enabled = false
	f.Stepper.MaxStepRate = 0

	if err := f.Validate(); err != nil {
		t.Errorf("disabled stepper section should not be validated: %v", err)
	}
}
