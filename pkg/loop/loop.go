// Package loop runs the control cycle: poll the sensor channels into the
// safety monitor, run the per-cycle trigger checks, and force the motor
// output to zero the moment the latch engages.
package loop

import (
	"context"
	"time"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/metrics"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
)

// DefaultInterval is the control cycle period.
const DefaultInterval = 20 * time.Millisecond

// Loop drives the safety monitor once per cycle.
type Loop struct {
	mon      *safety.Monitor
	io       hal.IO
	drv      *motor.Driver
	logger   *log.Logger
	interval time.Duration

	violations *metrics.Counter
	stops      *metrics.Counter
	ceiling    *metrics.Gauge
	distance   *metrics.Gauge
	battery    *metrics.Gauge
	tickTime   *metrics.Gauge

	wasSafe bool
}

// New creates a control loop. The registry may be shared with the
// telemetry server.
func New(mon *safety.Monitor, io hal.IO, drv *motor.Driver, reg *metrics.Registry, logger *log.Logger, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		mon:        mon,
		io:         io,
		drv:        drv,
		logger:     logger.WithPrefix("loop"),
		interval:   interval,
		violations: reg.Counter("safety_violations_total", "Cumulative safety trigger count"),
		stops:      reg.Counter("safety_latch_engaged_total", "Times the emergency latch engaged"),
		ceiling:    reg.Gauge("safety_ceiling", "Current output ceiling"),
		distance:   reg.Gauge("sensor_distance_cm", "Latest obstacle distance reading"),
		battery:    reg.Gauge("sensor_battery_volts", "Latest battery voltage reading"),
		tickTime:   reg.Gauge("loop_tick_seconds", "Duration of the last control cycle"),
		wasSafe:    true,
	}
}

// Run executes Tick on every interval until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("control loop started, interval %s", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs one control cycle.
func (l *Loop) Tick() {
	start := time.Now()
	defer func() { l.tickTime.Set(time.Since(start).Seconds()) }()

	if v, err := l.io.Get(hal.ChanDistanceCm); err != nil {
		l.logger.Warn("distance read failed: %v", err)
	} else {
		l.mon.UpdateDistance(int(v))
		l.distance.Set(float64(v))
	}

	if v, err := l.io.Get(hal.ChanBatteryMV); err != nil {
		l.logger.Warn("battery read failed: %v", err)
	} else {
		l.mon.UpdateBattery(float64(v) / 1000.0)
		l.battery.Set(float64(v) / 1000.0)
	}

	safe := l.mon.Check()
	if !safe && l.wasSafe {
		status := l.mon.GetStatus()
		l.logger.Error("emergency latch engaged: violations=%d battery=%.2f", status.Violations, status.BatteryVolts)
		l.stops.Inc()
		if err := l.drv.Stop(); err != nil {
			l.logger.Error("failed to zero motor output: %v", err)
		}
	} else if safe && !l.wasSafe {
		l.logger.Info("latch cleared, resuming")
	}
	l.wasSafe = safe

	l.violations.Set(int64(l.mon.Violations()))
	l.ceiling.Set(float64(l.mon.Ceiling()))
}
