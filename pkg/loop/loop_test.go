package loop

import (
	"io"
	"testing"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/metrics"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
)

func newTestLoop(t *testing.T) (*Loop, *safety.Monitor, *hal.Sim, *metrics.Registry) {
	t.Helper()
	logger := log.New("test")
	logger.SetWriter(io.Discard)

	sim := hal.NewSim()
	mon := safety.New(safety.DefaultConfig())
	drv := motor.NewDriver(mon, sim, logger)
	reg := metrics.NewRegistry()
	return New(mon, sim, drv, reg, logger, 0), mon, sim, reg
}

func TestTickFeedsSensors(t *testing.T) {
	l, mon, sim, _ := newTestLoop(t)

	sim.Set(hal.ChanDistanceCm, 14)
	sim.Set(hal.ChanBatteryMV, 3700)
	mon.HostHeartbeat()

	l.Tick()

	if got := mon.Ceiling(); got != 100 {
		t.Errorf("ceiling = %d after distance 14, want 100", got)
	}
	status := mon.GetStatus()
	if status.BatteryVolts != 3.7 {
		t.Errorf("battery = %v, want 3.7", status.BatteryVolts)
	}
	if status.State != "speed_reduced" {
		t.Errorf("state = %s, want speed_reduced", status.State)
	}
}

func TestTickProximityStopZeroesMotor(t *testing.T) {
	l, mon, sim, _ := newTestLoop(t)

	mon.HostHeartbeat()
	drvSpinUp(t, mon, sim)

	sim.Set(hal.ChanDistanceCm, 5)
	l.Tick()

	if !mon.Latched() {
		t.Fatal("should latch at 5cm")
	}
	pwm, _ := sim.Get(hal.ChanMotorPWM)
	if pwm != 0 {
		t.Errorf("motor register = %d after latch, want 0", pwm)
	}
}

// drvSpinUp writes a non-zero PWM directly to the sim so the latch
// transition has something to zero.
func drvSpinUp(t *testing.T, mon *safety.Monitor, sim *hal.Sim) {
	t.Helper()
	if err := sim.Set(hal.ChanMotorPWM, int32(mon.ClampOutput(150))); err != nil {
		t.Fatal(err)
	}
}

func TestTickUndervoltageLatches(t *testing.T) {
	l, mon, sim, _ := newTestLoop(t)

	mon.HostHeartbeat()
	sim.Set(hal.ChanBatteryMV, 2800)
	l.Tick()

	if !mon.Latched() {
		t.Error("should latch below 3.0V")
	}
}

func TestTickPublishesMetrics(t *testing.T) {
	l, mon, sim, reg := newTestLoop(t)

	mon.HostHeartbeat()
	sim.Set(hal.ChanDistanceCm, 50)
	sim.Set(hal.ChanBatteryMV, 4100)
	l.Tick()

	if got := reg.Gauge("safety_ceiling", "").Value(); got != 200 {
		t.Errorf("ceiling gauge = %v, want 200", got)
	}
	if got := reg.Gauge("sensor_distance_cm", "").Value(); got != 50 {
		t.Errorf("distance gauge = %v, want 50", got)
	}
	if got := reg.Gauge("sensor_battery_volts", "").Value(); got != 4.1 {
		t.Errorf("battery gauge = %v, want 4.1", got)
	}

	// Trip the latch via proximity, then metrics reflect the stop.
	sim.Set(hal.ChanDistanceCm, 3)
	l.Tick()
	if got := reg.Counter("safety_latch_engaged_total", "").Value(); got != 1 {
		t.Errorf("latch counter = %d, want 1", got)
	}
}

func TestTickLatchTransitionOnce(t *testing.T) {
	l, mon, sim, reg := newTestLoop(t)

	mon.HostHeartbeat()
	sim.Set(hal.ChanDistanceCm, 3)

	l.Tick()
	l.Tick()
	l.Tick()

	// The engagement counter counts transitions, not latched cycles.
	if got := reg.Counter("safety_latch_engaged_total", "").Value(); got != 1 {
		t.Errorf("latch counter = %d, want 1", got)
	}
	if !mon.Latched() {
		t.Error("latch should remain set")
	}
}
