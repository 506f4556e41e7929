package main

import (
	"flag"
	"log"
	"reflect"
	"strings"

	"github.com/robotalks/robofleet/pkg/env"
	"github.com/robotalks/robofleet/pkg/fleet/mqtt"
	"github.com/robotalks/robofleet/pkg/msgs"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	cfg := env.NewConfig()
	conf := cfg.MustLoadFleet()
	bridge, err := cfg.NewBridge(conf, "fleetmon")
	if err != nil {
		log.Fatalln(err)
	}
	if err := bridge.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer bridge.Close()

	topic := "#"
	if bridge.Root != "" {
		topic = bridge.Root + "/#"
	}
	bridge.Queue.Sub(topic, mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, mqtt.PresenceTopic) {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))
	<-(chan struct{})(nil)
}
