// Package plot renders data series as braille text plots, tables and PNG charts.
package plot

import (
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
	minPlotWidth        = 10
	defaultPlotHeight   = 12
)

var layerColors = []string{
	"\x1b[36m", // cyan
	"\x1b[35m", // magenta
	"\x1b[33m", // yellow
	"\x1b[32m", // green
}

// canvas is a grid of braille cells, two dots wide and four dots tall each.
type canvas struct {
	width  int
	height int
	cells  [][]uint8
	layers [][]int8
}

func newCanvas(width, height int) *canvas {
	c := &canvas{width: width, height: height}
	c.cells = make([][]uint8, height)
	c.layers = make([][]int8, height)
	for y := 0; y < height; y++ {
		c.cells[y] = make([]uint8, width)
		c.layers[y] = make([]int8, width)
		for x := range c.layers[y] {
			c.layers[y][x] = -1
		}
	}
	return c
}

func (c *canvas) dotsWide() int { return c.width * 2 }
func (c *canvas) dotsTall() int { return c.height * 4 }

// set lights the dot at (x, y). The first layer to touch a cell owns its color.
func (c *canvas) set(x, y, layer int) {
	if x < 0 || y < 0 {
		return
	}
	cellX, cellY := x/2, y/4
	if cellY >= c.height || cellX >= c.width {
		return
	}
	c.cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
	if c.layers[cellY][cellX] < 0 {
		c.layers[cellY][cellX] = int8(layer)
	}
}

func (c *canvas) line(x0, y0, x1, y1, layer int) {
	drawLine(x0, y0, x1, y1, func(x, y int) {
		c.set(x, y, layer)
	})
}

func (c *canvas) row(y int, color bool) string {
	var b strings.Builder
	for x := 0; x < c.width; x++ {
		ch := brailleFromMask(c.cells[y][x])
		layer := c.layers[y][x]
		if color && layer >= 0 {
			b.WriteString(layerColors[int(layer)%len(layerColors)])
			b.WriteRune(ch)
			b.WriteString(colorReset)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// scale maps v in [lo, hi] onto [0, n-1]. flip puts lo at the far end.
func scale(v, lo, hi float64, n int, flip bool) int {
	if n <= 1 || hi == lo {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	if flip {
		pos = 1 - pos
	}
	return int(math.Round(pos * float64(n-1)))
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

// WidthFor computes a plot width that leaves room for an axis of axisWidth
// columns within totalWidth.
func WidthFor(totalWidth, axisWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	w := totalWidth - axisWidth
	if w < minPlotWidth {
		w = minPlotWidth
	}
	return w
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// UseColor reports whether ANSI colors should be written to w.
func UseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
