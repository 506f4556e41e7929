//go:build linux

package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/host"
	"github.com/robotalks/robofleet/pkg/robot"
)

var (
	iface       = host.DefaultInterface
	firmwareDir = "/var/lib/robofleet"
	batteryPath = host.DefaultBatteryPath
	conf        = robot.DefaultConfig()
)

func init() {
	if val := os.Getenv("ROBO_IFACE"); val != "" {
		iface = val
	}
	if val := os.Getenv("ROBO_FIRMWARE_DIR"); val != "" {
		firmwareDir = val
	}
	if val := os.Getenv("ROBO_SSID"); val != "" {
		conf.SSID = val
	}
	flag.StringVar(&iface, "iface", iface, "Network interface.")
	flag.StringVar(&firmwareDir, "firmware-dir", firmwareDir, "Firmware directory.")
	flag.StringVar(&batteryPath, "battery", batteryPath, "Battery voltage file.")
	flag.StringVar(&conf.SSID, "ssid", conf.SSID, "Access point to join.")
	flag.StringVar(&conf.Password, "password", os.Getenv("ROBO_PASSWORD"), "Access point password.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	store := host.NewFirmwareStore(firmwareDir, host.RebootSystem)
	if err := store.Boot(); err != nil {
		glog.Exitf("firmware: %v", err)
	}
	network := host.NewNetwork(iface, store)
	defer network.Close()

	runner := fx.NewRunner().HandleSignals()
	name, err := robot.Resolve(context.Background(), network)
	if err != nil {
		glog.Exitf("identify robot: %v", err)
	}
	glog.Infof("running as %s", name)
	r := robot.New(name, robot.Behaviors{
		Network:     network,
		Motors:      &host.Motors{},
		Peripherals: host.NewPeripherals(batteryPath),
	}, conf)
	if err := runner.Go(r).Wait(); err != nil {
		glog.Exit(err)
	}
}
