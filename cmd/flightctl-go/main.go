// flightctl-go is the Go implementation of the flight controller's safety
// interlock host. It polls the MCU's sensor registers, enforces the hard
// output limits, serves the host command channel, and exposes telemetry.
//
// Usage:
//
//	flightctl-go [options]
//
// Options:
//
//	-config string     Limits configuration file (YAML)
//	-sim               Use the in-memory hardware simulation
//	-device string     MCU register bridge serial device (overrides config)
//	-host string       Host command channel serial device (overrides config)
//	-telemetry string  Telemetry listen address (overrides config)
//	-interval duration Control loop interval (default 20ms)
//	-logfile string    Write the log to a file instead of stderr
//
// Examples:
//
//	# Run against real hardware
//	flightctl-go -config /etc/flightctl/limits.yaml
//
//	# Run on a desktop with simulated sensors
//	flightctl-go -sim
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightctl-go-migration/pkg/config"
	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/host"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/loop"
	"flightctl-go-migration/pkg/metrics"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
	"flightctl-go-migration/pkg/serialport"
	"flightctl-go-migration/pkg/telemetry"
)

func main() {
	configFile := flag.String("config", "", "Limits configuration file (YAML)")
	sim := flag.Bool("sim", false, "Use the in-memory hardware simulation")
	device := flag.String("device", "", "MCU register bridge serial device (overrides config)")
	hostDevice := flag.String("host", "", "Host command channel serial device (overrides config)")
	telemetryAddr := flag.String("telemetry", "", "Telemetry listen address (overrides config)")
	interval := flag.Duration("interval", loop.DefaultInterval, "Control loop interval")
	logFile := flag.String("logfile", "", "Write the log to a file instead of stderr")
	flag.Parse()

	logger := log.New("flightctl")
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetWriter(f)
		logger.SetColorize(false)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		logger.Info("limits loaded from %s", *configFile)
	}
	if *device != "" {
		cfg.HAL.Device = *device
	}
	if *hostDevice != "" {
		cfg.Host.Device = *hostDevice
	}
	if *telemetryAddr != "" {
		cfg.Telemetry.Addr = *telemetryAddr
	}

	// Hardware abstraction: simulation or the serial register bridge.
	var io hal.IO
	if *sim || cfg.HAL.Device == "" {
		logger.Info("using simulated hardware")
		io = hal.NewSim()
	} else {
		port, err := serialport.Open(serialport.Config{
			Device: cfg.HAL.Device,
			Baud:   cfg.HAL.Baud,
		})
		if err != nil {
			logger.Error("cannot open register bridge: %v", err)
			os.Exit(1)
		}
		defer port.Close()
		logger.Info("register bridge on %s @ %d baud", cfg.HAL.Device, cfg.HAL.Baud)
		io = hal.NewBridge(port)
	}

	// Safety monitor and drivers.
	mon := safety.New(cfg.SafetyConfig())
	drv := motor.NewDriver(mon, io, logger)

	var smon *safety.StepperMonitor
	var sdrv *motor.StepperDriver
	if cfg.Stepper.Enabled {
		smon = safety.NewStepper(mon, cfg.StepperConfig())
		sdrv = motor.NewStepperDriver(smon, io, logger)
		logger.Info("stepper limits active: rate=%d steps=%d", cfg.Stepper.MaxStepRate, cfg.Stepper.MaxContinuousSteps)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Telemetry server.
	registry := metrics.NewRegistry()
	server := telemetry.New(telemetry.Config{
		Addr:      cfg.Telemetry.Addr,
		Interlock: mon,
		Registry:  registry,
		Logger:    logger,
	})
	server.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// Host command channel.
	channel := host.NewChannel(mon, drv, smon, sdrv, logger)
	if cfg.Host.Device != "" {
		hostPort, err := host.OpenPort(cfg.Host.Device, cfg.Host.Baud)
		if err != nil {
			logger.Error("cannot open host channel: %v", err)
			os.Exit(1)
		}
		defer hostPort.Close()
		logger.Info("host channel on %s @ %d baud", cfg.Host.Device, cfg.Host.Baud)
		go func() {
			if err := channel.Run(ctx, hostPort); err != nil && ctx.Err() == nil {
				logger.Error("host channel stopped: %v", err)
				cancel()
			}
		}()
	} else {
		logger.Warn("no host channel device; heartbeat timeout will latch in %s", cfg.SafetyConfig().HostTimeout)
	}

	// Control loop on the main goroutine.
	l := loop.New(mon, io, drv, registry, logger, *interval)
	_ = l.Run(ctx)

	// Leave the hardware safe on the way out.
	mon.EmergencyStop()
	_ = drv.Stop()
	if sdrv != nil {
		_ = sdrv.Stop()
	}
	logger.Info("flightctl-go stopped")
}
