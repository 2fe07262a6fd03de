package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	sercos3 "github.com/sercos3/master"
	_ "github.com/sercos3/master/hal"       // registers the "raw" ring backend
	_ "github.com/sercos3/master/hal/simhal" // registers the "sim" ring backend
	"github.com/sercos3/master/pkg/config"
	"github.com/sercos3/master/pkg/diag"
	"github.com/sercos3/master/pkg/hotplug"
	"github.com/sercos3/master/pkg/phase"
	"github.com/sercos3/master/pkg/scp"
	"github.com/sercos3/master/pkg/slave"
	"github.com/sercos3/master/pkg/svc"
	"github.com/sercos3/master/pkg/timing"
)

var defaultConfigPath = "master.ini"

func main() {
	configPath := flag.String("c", defaultConfigPath, "master configuration file path")
	ringBackend := flag.String("ring", "sim", "ring backend: sim, or raw (Linux only)")
	ringChannel := flag.String("channel", "", "ring backend channel, e.g. \"eth0,eth1\" for raw")
	flag.Parse()

	logger := slog.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("could not load master configuration: %v\n", err)
		os.Exit(1)
	}

	ring, err := sercos3.NewRing(*ringBackend, *ringChannel)
	if err != nil {
		fmt.Printf("could not open ring backend %q: %v\n", *ringBackend, err)
		os.Exit(1)
	}
	if err := ring.Connect(); err != nil {
		fmt.Printf("could not connect ring: %v\n", err)
		os.Exit(1)
	}
	defer ring.Disconnect()

	ringManager := sercos3.NewRingManager(ring)

	fleet := slave.NewFleet(cfg.Addresses())
	order := svc.HostOrder{}
	engines := make([]*svc.Engine, fleet.Len())
	for i := range engines {
		engines[i] = svc.NewEngine(svc.NewContainer(), order)
	}

	reasoner := scp.NewReasoner(64)
	timingCfg := timing.NewConfiguration()
	timingCfg.Set(func(c *timing.Configuration) {
		c.CommCycleTime = cfg.CommCycleTime
	})
	ringMeter := timing.NewRingDelayMeter(32, 2*time.Microsecond, logger)
	aggregate := diag.NewAggregate()

	sequencer := phase.NewSequencer(fleet, engines, order, reasoner, timingCfg, ringMeter, aggregate, logger)
	coordinator := hotplug.NewCoordinator(fleet, sequencer, ringManager, order, logger)
	coordinator.HPSupported = true

	run(ringManager, sequencer, coordinator, timingCfg)
}

// bringupStage is one step of the CP0->CP4 bring-up, run to completion
// before the next stage starts; once all four have finished the loop falls
// through to steady-state cyclic operation with the Hot-Plug Coordinator
// armed alongside it.
type bringupStage struct {
	name string
	run  func() sercos3.Step
}

// run drives the phase sequencer's CP0->CP4 bring-up once per configured
// cycle time, then falls into steady-state cyclic operation with the
// Hot-Plug Coordinator polled alongside it.
func run(ringManager *sercos3.RingManager, seq *phase.Sequencer, coord *hotplug.Coordinator, cfg *timing.Configuration) {
	cycle := cfg.Snapshot().CommCycleTime
	if cycle <= 0 {
		cycle = time.Millisecond
	}
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	stages := []bringupStage{
		{name: "CP1 check version", run: seq.CheckVersion},
		{name: "CP2 timing data", run: seq.GetTimingData},
		{name: "CP2 transmit timing", run: seq.TransmitTiming},
		{name: "CP3 read config", run: seq.ReadConfig},
	}
	stageIdx := 0

	for range ticker.C {
		if stageIdx < len(stages) {
			step := stages[stageIdx].run()
			if step.Failed() {
				slog.Default().Error("bring-up stage failed", "stage", stages[stageIdx].name, "error", step.Err)
				return
			}
			if step.Done() {
				stageIdx++
			}
			continue
		}
		coord.HotPlug(false)
	}
}
