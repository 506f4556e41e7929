package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/env"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/robot"
	"github.com/robotalks/robofleet/pkg/sim"
	"github.com/robotalks/robofleet/pkg/sim/game"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig().MustLoadFleet()
	world := sim.NewWorld(sim.DefaultBounds)
	fleet := sim.NewFleet(world, robot.DefaultConfig())
	fleet.FailJoin = make(map[names.RobotName]bool)
	for _, r := range conf.Robots {
		if name, err := names.Parse(r.Name); err == nil && r.FailJoin {
			fleet.FailJoin[name] = true
		}
	}

	loop := fx.NewLoop()
	loop.Interval = time.Duration(conf.Simulator.StepMs) * time.Millisecond
	srv := game.NewServer(conf.Simulator.GameAddr, loop).Subscribe(world)
	loop.Add(world, srv)
	loop.AddRunnable(fx.NamedRun("fleet", fx.RunnableFunc(func(ctx context.Context) error {
		for _, name := range env.Robots(conf) {
			if !name.IsSimulated() {
				glog.Warningf("skipping %s: not a simulated robot", name)
				continue
			}
			if err := fleet.Spawn(ctx, name); err != nil {
				return err
			}
		}
		<-ctx.Done()
		fleet.DestroyAll()
		return nil
	})))

	if err := fx.NewRunner().HandleSignals().Go(loop).Wait(); err != nil {
		glog.Exit(err)
	}
}
