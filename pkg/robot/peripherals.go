package robot

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/bus"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// Peripherals task defaults.
const (
	DefaultPeripheralsPeriod = 15 * time.Millisecond
	DefaultMinSleep          = 5 * time.Millisecond
	DefaultDisplayInterval   = 100 * time.Millisecond
	DefaultInitRetry         = time.Second
	DefaultSensorsInterval   = 100 * time.Millisecond
)

// NumDistanceSensors is the number of distance sensor slots.
const NumDistanceSensors = 4

var errUnknown = errors.New("unknown")

// Measurement is the latest result of one sensor.
type Measurement struct {
	Value float64
	Err   error
}

// OK tells if the measurement holds a value.
func (m Measurement) OK() bool {
	return m.Err == nil
}

func (m Measurement) equal(o Measurement) bool {
	if m.Value != o.Value || (m.Err == nil) != (o.Err == nil) {
		return false
	}
	return m.Err == nil || m.Err.Error() == o.Err.Error()
}

// SensorData is the latest reading of all sensors.
type SensorData struct {
	Angle     Measurement
	Distances [NumDistanceSensors]Measurement
	Battery   Measurement
}

func unknownSensorData() SensorData {
	d := SensorData{Angle: Measurement{Err: errUnknown}, Battery: Measurement{Err: errUnknown}}
	for n := range d.Distances {
		d.Distances[n].Err = errUnknown
	}
	return d
}

// Msg converts the data into a wire message.
// Distances without a value are sent as NaN.
func (d SensorData) Msg() *msgs.Sensors {
	m := &msgs.Sensors{
		Angle:     float32(d.Angle.Value),
		AngleOk:   d.Angle.OK(),
		Battery:   float32(d.Battery.Value),
		Distances: make([]float32, len(d.Distances)),
	}
	for n, dist := range d.Distances {
		if dist.OK() {
			m.Distances[n] = float32(dist.Value)
		} else {
			m.Distances[n] = float32(math.NaN())
		}
	}
	return m
}

type device struct {
	sensor      Sensor
	initialized bool
	disabled    bool
	nextInit    time.Time
}

// PeripheralsTask polls sensors and refreshes the screen.
type PeripheralsTask struct {
	Peripherals     Peripherals
	Bus             *bus.Bus
	Sensors         *bus.Watch[SensorData]
	Period          time.Duration
	MinSleep        time.Duration
	DisplayInterval time.Duration
	InitRetry       time.Duration
	SensorsInterval time.Duration

	devices     []*device
	data        SensorData
	rawAngle    float64
	angleOffset float64
	screen      screenState
	lastDisplay time.Time
	lastSensors time.Time
	dirty       bool
	monitor     *UtilizationMonitor
}

// NewPeripheralsTask creates a PeripheralsTask with defaults.
func NewPeripheralsTask(p Peripherals, b *bus.Bus) *PeripheralsTask {
	return &PeripheralsTask{
		Peripherals:     p,
		Bus:             b,
		Sensors:         bus.NewWatch(unknownSensorData()),
		Period:          DefaultPeripheralsPeriod,
		MinSleep:        DefaultMinSleep,
		DisplayInterval: DefaultDisplayInterval,
		InitRetry:       DefaultInitRetry,
		SensorsInterval: DefaultSensorsInterval,
	}
}

// Name implements Named.
func (t *PeripheralsTask) Name() string {
	return bus.TaskPeripherals.String()
}

// Run implements Runnable.
func (t *PeripheralsTask) Run(ctx context.Context) error {
	t.init()
	ep := t.Bus.Endpoint(bus.TaskPeripherals)
	for {
		start := time.Now()
		t.monitor.Start()
		if err := t.Step(ctx, start); err != nil {
			glog.Errorf("peripherals: %v", err)
			return err
		}
		t.monitor.Stop()

		wait := t.Period - time.Since(start)
		if wait < t.MinSleep {
			wait = t.MinSleep
		}
		deadline := start.Add(wait)
		for {
			msg, err := ep.ReceiveTimeout(ctx, time.Until(deadline))
			if err != nil {
				return err
			}
			if msg == nil {
				break
			}
			t.handle(msg)
		}
	}
}

func (t *PeripheralsTask) init() {
	t.devices = nil
	for _, s := range t.Peripherals.Sensors() {
		t.devices = append(t.devices, &device{sensor: s})
	}
	t.data = unknownSensorData()
	t.screen = screenState{}
	t.monitor = NewUtilizationMonitor()
}

func (t *PeripheralsTask) handle(msg bus.Message) {
	switch m := msg.(type) {
	case bus.NetworkStatus:
		t.screen.network = m.State
	case bus.ResetAngle:
		t.angleOffset = t.rawAngle
		if t.data.Angle.OK() {
			t.data.Angle.Value = 0
			t.dirty = true
		}
	case bus.Command:
		if _, ok := m.Msg.(*msgs.TargetVelocity); ok {
			t.screen.commanded = true
		}
	default:
		glog.V(2).Infof("peripherals ignored %T", msg)
	}
}

// Step polls devices, publishes changed readings and refreshes the screen.
func (t *PeripheralsTask) Step(ctx context.Context, now time.Time) error {
	if t.monitor == nil {
		t.init()
	}
	for _, d := range t.devices {
		t.service(ctx, d, now)
	}
	if t.dirty {
		t.Sensors.Publish(t.data)
		if now.Sub(t.lastSensors) >= t.SensorsInterval {
			t.dirty, t.lastSensors = false, now
			t.Bus.TrySend(bus.TaskWifi, bus.ToServer{Msg: t.data.Msg()})
		}
	}
	if now.Sub(t.lastDisplay) < t.DisplayInterval {
		return nil
	}
	t.lastDisplay = now
	t.screen.utilization = t.monitor.Utilization()
	t.screen.sensors = t.data
	if err := t.Peripherals.Draw(t.screen.draw); err != nil {
		return err
	}
	if err := t.Peripherals.Flip(ctx); err != nil {
		return err
	}
	t.screen.commanded = false
	t.Bus.TrySend(bus.TaskWifi, bus.Utilization{Task: bus.TaskPeripherals, Ratio: t.screen.utilization})
	return nil
}

func (t *PeripheralsTask) service(ctx context.Context, d *device, now time.Time) {
	if d.disabled {
		return
	}
	slot := d.sensor.Slot()
	if !d.initialized {
		if now.Before(d.nextInit) {
			return
		}
		if err := d.sensor.Initialize(ctx); err != nil {
			t.deviceFailed(d, now, err)
			return
		}
		glog.Infof("%s initialized", d.sensor.Name())
		d.initialized = true
	}
	v, err := d.sensor.Poll(ctx)
	if err != nil {
		t.deviceFailed(d, now, err)
		return
	}
	if slot.Kind == SensorAngle {
		t.rawAngle = v
		v = normalizeAngle(v - t.angleOffset)
	}
	t.store(slot, Measurement{Value: v})
}

func (t *PeripheralsTask) deviceFailed(d *device, now time.Time, err error) {
	t.store(d.sensor.Slot(), Measurement{Err: err})
	switch DeviceErrorKindOf(err) {
	case DeviceDisabled:
		glog.Warningf("%s disabled: %v", d.sensor.Name(), err)
		d.disabled = true
	case DeviceTransient:
		glog.V(2).Infof("%s: %v", d.sensor.Name(), err)
	default:
		glog.Errorf("%s: %v", d.sensor.Name(), err)
		d.initialized = false
		d.nextInit = now.Add(t.InitRetry)
	}
}

func (t *PeripheralsTask) store(slot Slot, m Measurement) {
	var cur *Measurement
	switch slot.Kind {
	case SensorAngle:
		cur = &t.data.Angle
	case SensorBattery:
		cur = &t.data.Battery
	case SensorDistance:
		if slot.Index < 0 || slot.Index >= NumDistanceSensors {
			return
		}
		cur = &t.data.Distances[slot.Index]
	default:
		return
	}
	if !cur.equal(m) {
		*cur = m
		t.dirty = true
	}
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
