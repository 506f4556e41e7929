package main

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/robofleet/pkg/cli/sh"
	"github.com/robotalks/robofleet/pkg/env"

	_ "github.com/robotalks/robofleet/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

var robot = os.Getenv("ROBO_ROBOT")

func init() {
	env.SetupFlags()
	flag.StringVar(&robot, "robot", robot, "Robot to select.")
}

func main() {
	flag.Parse()

	cfg := env.NewConfig()
	bridge, err := cfg.NewBridge(cfg.MustLoadFleet(), "fleetctl")
	if err != nil {
		log.Fatalln(err)
	}
	sh.Main(bridge, robot)
}
