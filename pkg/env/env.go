// Package env provides the options shared by the fleet binaries.
package env

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/robofleet/pkg/config"
	"github.com/robotalks/robofleet/pkg/fleet/mqtt"
	"github.com/robotalks/robofleet/pkg/names"
)

// Config provides common options to load the fleet and reach the broker.
type Config struct {
	// FleetFile is the yaml or toml fleet file. Defaults apply when empty.
	FleetFile string
	// MQTTURL overrides the broker in the fleet file.
	// e.g. tcp://host:port/topic-prefix
	MQTTURL string
	// ClientID is the MQTT client id when the fleet file has none.
	ClientID string
}

var defaultConfig Config

func init() {
	if val := os.Getenv("ROBO_FLEET_FILE"); val != "" {
		defaultConfig.FleetFile = val
	}
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.FleetFile, "fleet", defaultConfig.FleetFile, "Fleet file (.yaml or .toml).")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.ClientID, "id", defaultConfig.ClientID, "MQTT client ID.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFleet loads the fleet file and applies overrides.
func (c *Config) LoadFleet() (*config.Config, error) {
	var fleet *config.Config
	var err error
	if c.FleetFile == "" {
		fleet, err = config.Parse(".yaml", nil)
	} else {
		fleet, err = config.Load(c.FleetFile)
	}
	if err != nil {
		return nil, err
	}
	if c.MQTTURL != "" {
		fleet.Coordinator.MQTTURL = c.MQTTURL
	}
	return fleet, nil
}

// MustLoadFleet loads the fleet file and fails on error.
func (c *Config) MustLoadFleet() *config.Config {
	fleet, err := c.LoadFleet()
	if err != nil {
		log.Fatalln(err)
	}
	return fleet
}

// Robots returns the robots of the fleet, or every simulated robot when
// none is configured.
func Robots(fleet *config.Config) []names.RobotName {
	if list := fleet.RobotNames(); len(list) > 0 {
		return list
	}
	return names.Simulated()
}

// NewBridge creates an MQTT bridge for a console named role.
func (c *Config) NewBridge(fleet *config.Config, role string) (*mqtt.Bridge, error) {
	return mqtt.NewBridge(fleet.Coordinator.MQTTURL, c.clientID(role), fleet.Coordinator.TopicRoot)
}

// NewCoordinatorBridge creates the MQTT bridge of the coordinator.
func (c *Config) NewCoordinatorBridge(fleet *config.Config) (*mqtt.Bridge, error) {
	clientID := fleet.Coordinator.ClientID
	if clientID == "" {
		clientID = c.clientID("coordinator")
	}
	return mqtt.NewCoordinatorBridge(fleet.Coordinator.MQTTURL, clientID, fleet.Coordinator.TopicRoot)
}

func (c *Config) clientID(role string) string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return role + "-" + MachineID()
}
