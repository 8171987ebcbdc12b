package datawriter

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PlotRenderer draws a scan as a labeled line plot into an in-memory RGBA
// image. Axis ticks and decimation are collaborator concerns out of this
// component's scope; this renderer draws the full spectrum as a simple
// polyline with a title bar, the same manual-pixel-composition approach
// periph's framebuffer device packages use in place of a charting library.
type PlotRenderer struct {
	Width, Height int
}

// NewPlotRenderer returns a renderer sized for an archived plot image
// (independent of the on-device 320x240 live display).
func NewPlotRenderer(width, height int) *PlotRenderer {
	return &PlotRenderer{Width: width, Height: height}
}

var (
	colorBG    = color.RGBA{16, 16, 24, 255}
	colorAxis  = color.RGBA{90, 90, 100, 255}
	colorTrace = color.RGBA{64, 200, 255, 255}
	colorTitle = color.RGBA{235, 235, 235, 255}
)

const plotMargin = 28

// Render draws result onto a new RGBA image sized Width x Height, with
// title text carrying lens, integration time, and scan count context.
func (p *PlotRenderer) Render(result model.ScanResult, title string) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	fillRect(img, img.Bounds(), colorBG)

	plotArea := image.Rect(plotMargin, plotMargin, p.Width-8, p.Height-8)
	drawAxes(img, plotArea, colorAxis)
	drawTrace(img, plotArea, result.Intensities, colorTrace)
	drawText(img, 8, 16, title, colorTitle)

	return img, nil
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func drawAxes(img *image.RGBA, area image.Rectangle, c color.Color) {
	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Max.Y, c)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.Set(area.Min.X, y, c)
	}
}

// drawTrace plots intensities as a connected polyline scaled to fill area,
// using the data's own min/max for the Y axis (no smoothing/decimation:
// that is the live renderer's concern, not the archived plot's).
func drawTrace(img *image.RGBA, area image.Rectangle, intensities []float64, c color.Color) {
	if len(intensities) < 2 {
		return
	}
	lo, hi := intensities[0], intensities[0]
	for _, v := range intensities {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}

	w := area.Dx()
	h := area.Dy()
	prevX, prevY := 0, 0
	for i, v := range intensities {
		x := area.Min.X + i*w/(len(intensities)-1)
		norm := (v - lo) / (hi - lo)
		y := area.Max.Y - int(norm*float64(h))
		if i > 0 {
			drawLine(img, prevX, prevY, x, y, c)
		}
		prevX, prevY = x, y
	}
}

// drawLine is a minimal Bresenham line rasterizer; there is no charting
// library in the available dependency set, so the trace is drawn pixel
// by pixel the same way periph's framebuffer device code composes images
// manually.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	point := fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(s)
}

// writePNG renders req and encodes it to
// spectrum_<type>_<lens>_<YYYY-MM-DD-HHMMSS>.png under the per-day folder.
func (w *Writer) writePNG(req model.SaveRequest) error {
	if w.renderer == nil {
		return nil
	}
	dayDir, _ := w.csvPath(req)

	day := req.Timestamp.UTC().Format("2006-01-02")
	w.dayCounts[day]++

	title := fmt.Sprintf("%s %s  int=%dms  n=%d", req.SpectraType, req.LensType, req.IntegrationTimeMS, w.dayCounts[day])
	img, err := w.renderer.Render(req.ScanResult, title)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("spectrum_%s_%s_%s.png", req.SpectraType, req.LensType, req.Timestamp.UTC().Format("2006-01-02-150405"))
	out, err := os.Create(filepath.Join(dayDir, name))
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, img)
}
