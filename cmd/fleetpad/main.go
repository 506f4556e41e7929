package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/env"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/joystick"
	"github.com/robotalks/robofleet/pkg/names"
)

var robot = os.Getenv("ROBO_ROBOT")

func init() {
	env.SetupFlags()
	joystick.SetupFlags()
	flag.StringVar(&robot, "robot", robot, "Robot to drive.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	name, err := names.Parse(robot)
	if err != nil {
		glog.Exit(err)
	}
	cfg := env.NewConfig()
	bridge, err := cfg.NewBridge(cfg.MustLoadFleet(), "fleetpad")
	if err != nil {
		glog.Exit(err)
	}
	if err := bridge.Connect(); err != nil {
		glog.Exit(err)
	}
	defer bridge.Close()

	ctl := joystick.NewConfig().NewController(bridge, name.String())
	loop := fx.NewLoop().Add(ctl)
	if err := fx.NewRunner().HandleSignals().Go(loop).Wait(); err != nil {
		glog.Error(err)
	}
}
