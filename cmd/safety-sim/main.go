// safety-sim runs a scripted scenario against the in-memory hardware
// simulation and prints the interlock's reactions. Useful for eyeballing
// the clamp behavior without a board attached.
package main

import (
	"fmt"
	"io"
	"time"

	"flightctl-go-migration/pkg/hal"
	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/loop"
	"flightctl-go-migration/pkg/metrics"
	"flightctl-go-migration/pkg/motor"
	"flightctl-go-migration/pkg/safety"
)

func main() {
	logger := log.New("sim")
	logger.SetWriter(io.Discard)

	sim := hal.NewSim()
	mon := safety.New(safety.DefaultConfig())
	drv := motor.NewDriver(mon, sim, logger)
	l := loop.New(mon, sim, drv, metrics.NewRegistry(), logger, loop.DefaultInterval)

	step := func(title string) {
		mon.HostHeartbeat()
		l.Tick()
		s := mon.GetStatus()
		applied, _ := drv.SetThrottle(180)
		fmt.Printf("%-34s state=%-17s ceiling=%3d  thr(180)->%3d  violations=%d\n",
			title, s.State, s.Ceiling, applied, s.Violations)
	}

	fmt.Println("--- approach: obstacle closing in ---")
	for _, d := range []int32{100, 40, 20, 16, 12, 9} {
		sim.Set(hal.ChanDistanceCm, d)
		step(fmt.Sprintf("distance %dcm", d))
	}

	sim.Set(hal.ChanDistanceCm, 7)
	step("distance 7cm (breach)")

	fmt.Println("--- operator reset, obstacle cleared ---")
	mon.Reset()
	sim.Set(hal.ChanDistanceCm, 200)
	step("after reset")

	fmt.Println("--- battery sag ---")
	sim.Set(hal.ChanBatteryMV, 3100)
	step("battery 3.1V")
	sim.Set(hal.ChanBatteryMV, 2900)
	step("battery 2.9V (cutoff)")

	fmt.Println("--- host goes silent ---")
	mon.Reset()
	sim.Set(hal.ChanBatteryMV, 4100)

	// Shorten the heartbeat timeout so the demo doesn't sit for 5s.
	cfg := mon.Config()
	cfg.HostTimeout = 200 * time.Millisecond
	mon.UpdateConfig(cfg)
	mon.HostHeartbeat()
	l.Tick()

	time.Sleep(cfg.HostTimeout + 50*time.Millisecond)
	l.Tick()
	s := mon.GetStatus()
	applied, _ := drv.SetThrottle(180)
	fmt.Printf("%-34s state=%-17s ceiling=%3d  thr(180)->%3d  violations=%d\n",
		"after host silence", s.State, s.Ceiling, applied, s.Violations)
}
