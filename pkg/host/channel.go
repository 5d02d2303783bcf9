// Package host implements the command channel between the upstream host
// software and the interlock. Commands are single lines; every valid
// command refreshes the safety monitor's heartbeat, malformed ones do not.
//
// The wire surface is deliberately small: the host can request output, swap
// limit configs wholesale, stop, reset, and query status. Nothing the host
// sends can raise a limit past what the monitor enforces.
package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"flightctl-go-migration/pkg/errors"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
)

type handlerFunc func(args []string) (string, error)

// Channel dispatches host commands to the monitor and drivers.
type Channel struct {
	mon    *safety.Monitor
	smon   *safety.StepperMonitor
	drv    *motor.Driver
	sdrv   *motor.StepperDriver
	logger *log.Logger

	handlers map[string]handlerFunc
}

// NewChannel creates a command channel. The stepper monitor and driver may
// be nil when the platform has no stepper hardware.
func NewChannel(mon *safety.Monitor, drv *motor.Driver, smon *safety.StepperMonitor, sdrv *motor.StepperDriver, logger *log.Logger) *Channel {
	c := &Channel{
		mon:    mon,
		smon:   smon,
		drv:    drv,
		sdrv:   sdrv,
		logger: logger.WithPrefix("host"),
	}
	c.handlers = map[string]handlerFunc{
		"PING":   c.cmdPing,
		"THR":    c.cmdThrottle,
		"STEP":   c.cmdStep,
		"STOP":   c.cmdStop,
		"RST":    c.cmdReset,
		"STATUS": c.cmdStatus,
		"CFG":    c.cmdConfig,
		"SCFG":   c.cmdStepperConfig,
	}
	return c
}

// HandleLine executes one command line and returns the reply to send.
// The heartbeat is refreshed only when the command was valid.
func (c *Channel) HandleLine(line string) string {
	reply, err := c.dispatch(line)
	if err != nil {
		c.logger.Warn("rejected command: %v", err)
		return "!! " + err.Error()
	}
	c.mon.HostHeartbeat()
	return "ok " + reply
}

func (c *Channel) dispatch(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", errors.CmdParseError(line, "empty command")
	}

	handler, ok := c.handlers[strings.ToUpper(fields[0])]
	if !ok {
		return "", errors.CmdUnknownError(fields[0])
	}
	return handler(fields[1:])
}

// Run reads command lines from the port until the context is cancelled or
// the port closes, writing one reply per line.
func (c *Channel) Run(ctx context.Context, rw io.ReadWriter) error {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := c.HandleLine(line)
		if _, err := fmt.Fprintln(rw, reply); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func (c *Channel) cmdPing(args []string) (string, error) {
	return "pong", nil
}

func (c *Channel) cmdThrottle(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.CmdArgError("THR", "pwm", "exactly one value required")
	}
	requested, err := strconv.Atoi(args[0])
	if err != nil {
		return "", errors.CmdArgError("THR", "pwm", "not an integer")
	}

	applied, err := c.drv.SetThrottle(requested)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("thr=%d", applied), nil
}

func (c *Channel) cmdStep(args []string) (string, error) {
	if c.sdrv == nil {
		return "", errors.CmdUnknownError("STEP")
	}
	if len(args) != 2 {
		return "", errors.CmdArgError("STEP", "rate steps", "two values required")
	}
	rate, err := strconv.Atoi(args[0])
	if err != nil {
		return "", errors.CmdArgError("STEP", "rate", "not an integer")
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil {
		return "", errors.CmdArgError("STEP", "steps", "not an integer")
	}

	appliedRate, appliedSteps, err := c.sdrv.Move(rate, steps)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rate=%d steps=%d", appliedRate, appliedSteps), nil
}

func (c *Channel) cmdStop(args []string) (string, error) {
	c.mon.EmergencyStop()
	if err := c.drv.Stop(); err != nil {
		return "", err
	}
	if c.sdrv != nil {
		if err := c.sdrv.Stop(); err != nil {
			return "", err
		}
	}
	return "stopped", nil
}

func (c *Channel) cmdReset(args []string) (string, error) {
	c.mon.Reset()
	c.logger.Info("latch reset by host")
	return "reset", nil
}

func (c *Channel) cmdStatus(args []string) (string, error) {
	s := c.mon.GetStatus()
	return fmt.Sprintf("state=%s ceiling=%d max=%d violations=%d motor=%v batt=%.2f",
		s.State, s.Ceiling, s.MaxOutput, s.Violations, s.MotorRunning, s.BatteryVolts), nil
}

// cmdConfig replaces the whole safety config. All six limits must be
// present; there is no partial-field update.
func (c *Channel) cmdConfig(args []string) (string, error) {
	kv, err := parseKeyValues("CFG", args)
	if err != nil {
		return "", err
	}

	cfg := safety.Config{}
	if cfg.MaxOutput, err = intArg("CFG", kv, "max"); err != nil {
		return "", err
	}
	if cfg.EmergencyStopCm, err = intArg("CFG", kv, "stop"); err != nil {
		return "", err
	}
	if cfg.SpeedReduceCm, err = intArg("CFG", kv, "reduce"); err != nil {
		return "", err
	}
	runMs, err := intArg("CFG", kv, "run_ms")
	if err != nil {
		return "", err
	}
	hostMs, err := intArg("CFG", kv, "host_ms")
	if err != nil {
		return "", err
	}
	if cfg.MinBatteryVolts, err = floatArg("CFG", kv, "batt"); err != nil {
		return "", err
	}
	cfg.MaxContinuous = msToDuration(runMs)
	cfg.HostTimeout = msToDuration(hostMs)

	if cfg.MaxOutput <= 0 {
		return "", errors.CmdArgError("CFG", "max", "must be positive")
	}
	if cfg.SpeedReduceCm <= cfg.EmergencyStopCm {
		return "", errors.CmdArgError("CFG", "reduce", "must be greater than stop")
	}
	if runMs <= 0 || hostMs <= 0 {
		return "", errors.CmdArgError("CFG", "run_ms", "timeouts must be positive")
	}

	c.mon.UpdateConfig(cfg)
	c.logger.Info("safety config replaced: max=%d stop=%d reduce=%d",
		cfg.MaxOutput, cfg.EmergencyStopCm, cfg.SpeedReduceCm)
	return "cfg", nil
}

// cmdStepperConfig replaces the whole stepper config.
func (c *Channel) cmdStepperConfig(args []string) (string, error) {
	if c.smon == nil {
		return "", errors.CmdUnknownError("SCFG")
	}

	kv, err := parseKeyValues("SCFG", args)
	if err != nil {
		return "", err
	}

	cfg := safety.StepperConfig{}
	if cfg.MaxStepRate, err = intArg("SCFG", kv, "rate"); err != nil {
		return "", err
	}
	if cfg.MaxContinuousSteps, err = intArg("SCFG", kv, "steps"); err != nil {
		return "", err
	}
	hostMs, err := intArg("SCFG", kv, "host_ms")
	if err != nil {
		return "", err
	}
	if cfg.MaxCoilCurrent, err = floatArg("SCFG", kv, "coil"); err != nil {
		return "", err
	}
	cfg.HostTimeout = msToDuration(hostMs)

	if cfg.MaxStepRate <= 0 || cfg.MaxContinuousSteps <= 0 || hostMs <= 0 {
		return "", errors.CmdArgError("SCFG", "rate", "limits must be positive")
	}

	c.smon.UpdateConfig(cfg)
	c.logger.Info("stepper config replaced: rate=%d steps=%d", cfg.MaxStepRate, cfg.MaxContinuousSteps)
	return "scfg", nil
}

func parseKeyValues(cmd string, args []string) (map[string]string, error) {
	kv := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" || value == "" {
			return nil, errors.CmdArgError(cmd, arg, "expected key=value")
		}
		kv[key] = value
	}
	return kv, nil
}

func intArg(cmd string, kv map[string]string, key string) (int, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, errors.CmdArgError(cmd, key, "required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.CmdArgError(cmd, key, "not an integer")
	}
	return v, nil
}

func floatArg(cmd string, kv map[string]string, key string) (float64, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, errors.CmdArgError(cmd, key, "required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.CmdArgError(cmd, key, "not a number")
	}
	return v, nil
}
