package host

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
)

func newTestChannel(t *testing.T) (*Channel, *safety.Monitor, *hal.Sim) {
	t.Helper()
	logger := log.New("test")
	logger.SetWriter(io.Discard)

	sim := hal.NewSim()
	mon := safety.New(safety.DefaultConfig())
	smon := safety.NewStepper(mon, safety.DefaultStepperConfig())
	drv := motor.NewDriver(mon, sim, logger)
	sdrv := motor.NewStepperDriver(smon, sim, logger)
	return NewChannel(mon, drv, smon, sdrv, logger), mon, sim
}

func TestPing(t *testing.T) {
	c, _, _ := newTestChannel(t)

	if got := c.HandleLine("PING"); got != "ok pong" {
		t.Errorf("PING reply = %q", got)
	}
}

func TestThrottle(t *testing.T) {
	c, _, sim := newTestChannel(t)

	if got := c.HandleLine("THR 150"); got != "ok thr=150" {
		t.Errorf("THR reply = %q", got)
	}
	// Requests above the limit come back clamped, not rejected.
	if got := c.HandleLine("THR 999"); got != "ok thr=200" {
		t.Errorf("THR reply = %q", got)
	}

	pwm, _ := sim.Get(hal.ChanMotorPWM)
	if pwm != 200 {
		t.Errorf("hardware register = %d, want 200", pwm)
	}
}

func TestStep(t *testing.T) {
	c, _, _ := newTestChannel(t)

	if got := c.HandleLine("STEP 3000 1000"); got != "ok rate=2000 steps=1000" {
		t.Errorf("STEP reply = %q", got)
	}
}

func TestStopAndReset(t *testing.T) {
	c, mon, sim := newTestChannel(t)

	c.HandleLine("THR 150")
	if got := c.HandleLine("STOP"); got != "ok stopped" {
		t.Errorf("STOP reply = %q", got)
	}
	if !mon.Latched() {
		t.Error("STOP should latch the monitor")
	}
	pwm, _ := sim.Get(hal.ChanMotorPWM)
	if pwm != 0 {
		t.Errorf("hardware register = %d after STOP, want 0", pwm)
	}

	if got := c.HandleLine("RST"); got != "ok reset" {
		t.Errorf("RST reply = %q", got)
	}
	if mon.Latched() {
		t.Error("RST should clear the latch")
	}
}

func TestStatus(t *testing.T) {
	c, _, _ := newTestChannel(t)

	got := c.HandleLine("STATUS")
	for _, want := range []string{"ok state=normal", "ceiling=200", "violations=0"} {
		if !strings.Contains(got, want) {
			t.Errorf("STATUS reply %q missing %q", got, want)
		}
	}
}

func TestConfigReplace(t *testing.T) {
	c, mon, _ := newTestChannel(t)

	got := c.HandleLine("CFG max=150 stop=10 reduce=30 run_ms=20000 host_ms=4000 batt=3.2")
	if got != "ok cfg" {
		t.Fatalf("CFG reply = %q", got)
	}

	cfg := mon.Config()
	if cfg.MaxOutput != 150 || cfg.EmergencyStopCm != 10 || cfg.SpeedReduceCm != 30 {
		t.Errorf("config not replaced: %+v", cfg)
	}
	if cfg.MaxContinuous != 20*time.Second || cfg.HostTimeout != 4*time.Second {
		t.Errorf("timeouts not replaced: %+v", cfg)
	}
	if mon.Ceiling() != 150 {
		t.Errorf("ceiling = %d after config replace, want 150", mon.Ceiling())
	}
}

func TestConfigRequiresAllFields(t *testing.T) {
	c, mon, _ := newTestChannel(t)
	before := mon.Config()

	// Partial configs are rejected wholesale.
	got := c.HandleLine("CFG max=150")
	if !strings.HasPrefix(got, "!!") {
		t.Fatalf("partial CFG should be rejected, got %q", got)
	}
	if mon.Config() != before {
		t.Error("rejected CFG must not modify the config")
	}
}

func TestStepperConfigReplace(t *testing.T) {
	c, _, _ := newTestChannel(t)

	got := c.HandleLine("SCFG rate=900 steps=5000 host_ms=1500 coil=0.9")
	if got != "ok scfg" {
		t.Fatalf("SCFG reply = %q", got)
	}
	if reply := c.HandleLine("STEP 2000 9000"); reply != "ok rate=900 steps=5000" {
		t.Errorf("STEP after SCFG = %q", reply)
	}
}

func TestInvalidCommandsRejected(t *testing.T) {
	c, mon, _ := newTestChannel(t)

	before := mon.GetStatus()
	for _, line := range []string{"", "BOGUS", "THR abc", "THR", "CFG max=nope", "STEP 100"} {
		got := c.HandleLine(line)
		if !strings.HasPrefix(got, "!!") {
			t.Errorf("line %q should be rejected, got %q", line, got)
		}
	}
	if after := mon.GetStatus(); before != after {
		t.Errorf("invalid commands changed monitor state: %+v -> %+v", before, after)
	}
}

func TestUnknownStepperCommands(t *testing.T) {
	logger := log.New("test")
	logger.SetWriter(io.Discard)

	sim := hal.NewSim()
	mon := safety.New(safety.DefaultConfig())
	drv := motor.NewDriver(mon, sim, logger)
	c := NewChannel(mon, drv, nil, nil, logger)

	for _, line := range []string{"STEP 100 100", "SCFG rate=1 steps=1 host_ms=1 coil=1"} {
		if got := c.HandleLine(line); !strings.HasPrefix(got, "!!") {
			t.Errorf("%q without stepper hardware should be rejected, got %q", line, got)
		}
	}
}

func TestRun(t *testing.T) {
	c, mon, _ := newTestChannel(t)

	input := "PING\nTHR 120\nBOGUS\nSTATUS\n"
	link := &loopbackLink{in: strings.NewReader(input)}

	if err := c.Run(context.Background(), link); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(link.out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d replies, want 4: %q", len(lines), link.out.String())
	}
	if lines[0] != "ok pong" || lines[1] != "ok thr=120" {
		t.Errorf("unexpected replies: %v", lines)
	}
	if !strings.HasPrefix(lines[2], "!!") {
		t.Errorf("BOGUS should produce an error reply: %q", lines[2])
	}
	if !mon.GetStatus().MotorRunning {
		t.Error("THR 120 should have started the motor")
	}
}

type loopbackLink struct {
	in  io.Reader
	out strings.Builder
}

func (l *loopbackLink) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopbackLink) Write(p []byte) (int, error) { return l.out.Write(p) }
