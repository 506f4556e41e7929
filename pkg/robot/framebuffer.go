package robot

// Screen size in pixels.
const (
	ScreenWidth  = 128
	ScreenHeight = 64
)

// Framebuffer is a monochrome off-screen image, row major with 8 pixels
// per byte.
type Framebuffer struct {
	pix [ScreenWidth * ScreenHeight / 8]byte
}

// Set turns a pixel on or off. Out of range pixels are ignored.
func (f *Framebuffer) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= ScreenWidth || y >= ScreenHeight {
		return
	}
	n := y*ScreenWidth + x
	if on {
		f.pix[n/8] |= 1 << uint(n%8)
	} else {
		f.pix[n/8] &^= 1 << uint(n%8)
	}
}

// At tells if a pixel is on.
func (f *Framebuffer) At(x, y int) bool {
	if x < 0 || y < 0 || x >= ScreenWidth || y >= ScreenHeight {
		return false
	}
	n := y*ScreenWidth + x
	return f.pix[n/8]&(1<<uint(n%8)) != 0
}

// Clear turns all pixels off.
func (f *Framebuffer) Clear() {
	f.pix = [len(f.pix)]byte{}
}

// Rect draws the outline of a rectangle.
func (f *Framebuffer) Rect(x, y, w, h int) {
	for i := 0; i < w; i++ {
		f.Set(x+i, y, true)
		f.Set(x+i, y+h-1, true)
	}
	for j := 0; j < h; j++ {
		f.Set(x, y+j, true)
		f.Set(x+w-1, y+j, true)
	}
}

// FillRect fills a rectangle.
func (f *Framebuffer) FillRect(x, y, w, h int) {
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			f.Set(x+i, y+j, true)
		}
	}
}

// Line draws a line between two points.
func (f *Framebuffer) Line(x0, y0, x1, y1 int) {
	dx, sx := abs(x1-x0), 1
	if x0 > x1 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		f.Set(x0, y0, true)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Bytes returns a copy of the packed pixels.
func (f *Framebuffer) Bytes() []byte {
	return append([]byte(nil), f.pix[:]...)
}

// Count returns the number of pixels on.
func (f *Framebuffer) Count() int {
	var n int
	for _, b := range f.pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
