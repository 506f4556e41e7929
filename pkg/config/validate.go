package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/robotalks/robofleet/pkg/names"
)

// Validate checks the configuration without changing it.
func Validate(cfg *Config) error {
	seen := make(map[names.RobotName]bool)
	for i, r := range cfg.Robots {
		name, err := names.Parse(r.Name)
		if err != nil {
			return fmt.Errorf("robots[%d]: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("robots[%d]: %s listed twice", i, name)
		}
		seen[name] = true
		if r.Addr != "" {
			if _, _, err := net.SplitHostPort(r.Addr); err != nil {
				return fmt.Errorf("robot %s: addr: %w", name, err)
			}
		}
		if r.FailJoin && !name.IsSimulated() {
			return fmt.Errorf("robot %s: fail_join only applies to simulated robots", name)
		}
	}

	c := cfg.Coordinator
	if c.MQTTURL != "" {
		u, err := url.Parse(c.MQTTURL)
		if err != nil {
			return fmt.Errorf("coordinator.mqtt_url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("coordinator.mqtt_url %q: scheme and host required", c.MQTTURL)
		}
	}
	for key, v := range map[string]int{
		"coordinator.part_size": c.PartSize,
		"coordinator.tick_ms":   c.TickMs,
		"coordinator.retry_ms":  c.RetryMs,
		"simulator.step_ms":     cfg.Simulator.StepMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}
