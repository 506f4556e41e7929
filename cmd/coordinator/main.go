package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/env"
	"github.com/robotalks/robofleet/pkg/fleet"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/ota"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := env.NewConfig()
	conf := cfg.MustLoadFleet()
	bridge, err := cfg.NewCoordinatorBridge(conf)
	if err != nil {
		glog.Exit(err)
	}

	loop := fx.NewLoop()
	loop.Interval = time.Duration(conf.Coordinator.TickMs) * time.Millisecond
	server := fleet.NewServer(bridge)
	for _, name := range env.Robots(conf) {
		var addr string
		if rc, ok := conf.Robot(name); ok {
			addr = rc.Addr
		}
		machine := ota.NewMachine(fleet.FirmwareFile(conf.Coordinator.Firmware))
		machine.PartSize = conf.Coordinator.PartSize
		machine.RetryInterval = time.Duration(conf.Coordinator.RetryMs) * time.Millisecond
		link := fleet.NewLink(name, addr, loop)
		server.AddRobot(name, link, machine)
		glog.Infof("managing %s at %s", name, link.Addr)
	}
	loop.Add(bridge, server)

	if err := fx.NewRunner().HandleSignals().Go(loop).Wait(); err != nil {
		glog.Exit(err)
	}
}
