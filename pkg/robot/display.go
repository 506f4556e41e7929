package robot

import "github.com/robotalks/robofleet/pkg/bus"

// screenState is what the status screen shows.
type screenState struct {
	network     bus.NetworkState
	commanded   bool
	utilization float32
	sensors     SensorData
}

// draw renders the status screen: a border, the network indicator in the
// top left corner, a command activity dot, the utilization bar and one
// bar per distance sensor.
func (s *screenState) draw(fb *Framebuffer) {
	fb.Clear()
	fb.Rect(0, 0, ScreenWidth, ScreenHeight)

	fb.Rect(2, 2, 9, 9)
	switch s.network {
	case bus.Connected:
		fb.FillRect(4, 4, 5, 5)
	case bus.Connecting:
		fb.Set(6, 6, true)
	case bus.ConnectionFailed:
		fb.Line(2, 2, 10, 10)
		fb.Line(10, 2, 2, 10)
	}
	if s.commanded {
		fb.FillRect(13, 5, 3, 3)
	}

	fb.Rect(20, 4, 104, 5)
	if w := int(s.utilization * 100); w > 0 {
		fb.FillRect(22, 6, clampInt(w, 0, 100), 1)
	}

	for n, d := range s.sensors.Distances {
		x := 4 + n*30
		fb.Rect(x, 14, 26, 46)
		if !d.OK() {
			fb.Line(x, 14, x+25, 59)
			continue
		}
		if h := clampInt(int(d.Value*4), 0, 44); h > 0 {
			fb.FillRect(x+1, 59-h, 24, h)
		}
	}
}

func clampInt(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
