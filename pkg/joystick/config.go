package joystick

import (
	"flag"
)

// Config defines the configurations for the controller.
type Config struct {
	DeviceIndex int
	Verbose     bool
	MaxLinear   float64
	MaxAngular  float64
}

var defaultConfig = Config{
	DeviceIndex: -1,
	MaxLinear:   DefaultMapping.MaxLinear,
	MaxAngular:  DefaultMapping.MaxAngular,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.DeviceIndex, "device", defaultConfig.DeviceIndex, "Device index, -1 for auto detection.")
	flag.BoolVar(&defaultConfig.Verbose, "verbose", defaultConfig.Verbose, "Print Joystick events.")
	flag.Float64Var(&defaultConfig.MaxLinear, "max-linear", defaultConfig.MaxLinear, "Linear speed at full deflection.")
	flag.Float64Var(&defaultConfig.MaxAngular, "max-angular", defaultConfig.MaxAngular, "Angular speed at full deflection.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewController creates a controller using the config.
func (c *Config) NewController(sender CommandSender, robot string) *Controller {
	ctl := NewController(sender, robot)
	ctl.DeviceIndex = c.DeviceIndex
	ctl.Verbose = c.Verbose
	ctl.Mapping.MaxLinear = c.MaxLinear
	ctl.Mapping.MaxAngular = c.MaxAngular
	return ctl
}
