package config

import (
	"github.com/robotalks/robofleet/pkg/names"
)

// Normalize fills in defaults. It must only be called after Validate.
func Normalize(cfg *Config) {
	for i := range cfg.Robots {
		r := &cfg.Robots[i]
		name, err := names.Parse(r.Name)
		if err != nil {
			continue
		}
		r.Name = name.String()
		if r.Addr == "" {
			r.Addr = name.Addr()
		}
	}

	c := &cfg.Coordinator
	if c.MQTTURL == "" {
		c.MQTTURL = DefaultMQTTURL
	}
	if c.TopicRoot == "" {
		c.TopicRoot = DefaultTopicRoot
	}
	if c.PartSize == 0 {
		c.PartSize = DefaultPartSize
	}
	if c.TickMs == 0 {
		c.TickMs = DefaultTickMs
	}
	if c.RetryMs == 0 {
		c.RetryMs = DefaultRetryMs
	}

	s := &cfg.Simulator
	if s.GameAddr == "" {
		s.GameAddr = DefaultGameAddr
	}
	if s.StepMs == 0 {
		s.StepMs = DefaultStepMs
	}
}

// RobotNames returns the names of the configured robots.
func (c *Config) RobotNames() []names.RobotName {
	var list []names.RobotName
	for _, r := range c.Robots {
		if name, err := names.Parse(r.Name); err == nil {
			list = append(list, name)
		}
	}
	return list
}

// Robot finds the configuration of a robot.
func (c *Config) Robot(name names.RobotName) (RobotConfig, bool) {
	for _, r := range c.Robots {
		if n, err := names.Parse(r.Name); err == nil && n == name {
			return r, true
		}
	}
	return RobotConfig{}, false
}
