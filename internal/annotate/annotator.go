package annotate

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Detection carries the values the annotator needs to draw one subject.
type Detection struct {
	X1, Y1, X2, Y2 int
	Identity       string
	Confidence     float64
	Known          bool
}

// HUD carries the fixed-position overlay values.
type HUD struct {
	Timestamp   time.Time
	GallerySize int
	FrameIndex  uint64
}

// Two-color scheme: known subjects green, unknown or still-scanning orange.
var (
	colorKnown   = color.RGBA{0, 255, 0, 255}
	colorUnknown = color.RGBA{255, 165, 0, 255}
	colorHUD     = color.RGBA{255, 165, 0, 255}
	colorLabelBG = color.RGBA{0, 0, 0, 180}
)

const (
	boxThickness = 2
	cornerLength = 15
)

// Annotate draws bounding boxes, identity labels and the status overlay
// onto img. Drawing is clamped to the image bounds and the detections are
// never modified.
func Annotate(img *image.RGBA, detections []Detection, hud HUD) {
	for _, det := range detections {
		c := colorUnknown
		if det.Known {
			c = colorKnown
		}

		w := det.X2 - det.X1
		h := det.Y2 - det.Y1
		drawBox(img, det.X1, det.Y1, w, h, c, boxThickness)
		drawCorners(img, det.X1, det.Y1, det.X2, det.Y2, c)

		label := fmt.Sprintf("%s %.0f%%", det.Identity, det.Confidence*100)
		if det.Confidence == 0 {
			label = det.Identity
		}
		drawLabel(img, det.X1, det.Y1-15, label, c)
	}

	drawHUD(img, detections, hud)
}

// StatusText returns the aggregate status line for a detection set.
func StatusText(detections []Detection) string {
	identified := 0
	for _, det := range detections {
		if det.Known {
			identified++
		}
	}

	switch {
	case identified > 0:
		return fmt.Sprintf("identified: %d", identified)
	case len(detections) > 0:
		return "unknown subjects detected"
	default:
		return "searching..."
	}
}

func drawHUD(img *image.RGBA, detections []Detection, hud HUD) {
	bounds := img.Bounds()
	height := bounds.Dy()
	width := bounds.Dx()

	drawText(img, 10, 25, fmt.Sprintf("%s  gallery: %d", hud.Timestamp.Format("2006-01-02 15:04:05"), hud.GallerySize), colorHUD)
	drawText(img, 10, height-15, fmt.Sprintf("status: %s", StatusText(detections)), colorHUD)
	drawText(img, width-120, 25, fmt.Sprintf("frame: %d", hud.FrameIndex), colorHUD)
}

// drawBox draws a rectangle outline clamped to the image bounds.
func drawBox(img *image.RGBA, x, y, w, h int, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		for i := x; i < x+w && i < bounds.Max.X; i++ {
			if i < 0 {
				continue
			}
			if y+t >= 0 && y+t < bounds.Max.Y {
				img.Set(i, y+t, c)
			}
			if y+h-t >= 0 && y+h-t < bounds.Max.Y {
				img.Set(i, y+h-t, c)
			}
		}
		for j := y; j < y+h && j < bounds.Max.Y; j++ {
			if j < 0 {
				continue
			}
			if x+t >= 0 && x+t < bounds.Max.X {
				img.Set(x+t, j, c)
			}
			if x+w-t >= 0 && x+w-t < bounds.Max.X {
				img.Set(x+w-t, j, c)
			}
		}
	}
}

// drawCorners draws accent lines at the four box corners.
func drawCorners(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	t := boxThickness + 1
	// Top-left
	fillRect(img, x1, y1, cornerLength, t, c)
	fillRect(img, x1, y1, t, cornerLength, c)
	// Top-right
	fillRect(img, x2-cornerLength, y1, cornerLength, t, c)
	fillRect(img, x2-t, y1, t, cornerLength, c)
	// Bottom-left
	fillRect(img, x1, y2-t, cornerLength, t, c)
	fillRect(img, x1, y2-cornerLength, t, cornerLength, c)
	// Bottom-right
	fillRect(img, x2-cornerLength, y2-t, cornerLength, t, c)
	fillRect(img, x2-t, y2-cornerLength, t, cornerLength, c)
}

// fillRect fills a w*h rectangle clamped to the image bounds.
func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	bounds := img.Bounds()
	for j := y; j < y+h; j++ {
		if j < 0 || j >= bounds.Max.Y {
			continue
		}
		for i := x; i < x+w; i++ {
			if i < 0 || i >= bounds.Max.X {
				continue
			}
			img.Set(i, j, c)
		}
	}
}

// drawLabel draws text over a dark background rectangle.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}

	bounds := img.Bounds()
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < bounds.Max.X && py >= 0 && py < bounds.Max.Y {
				img.Set(px, py, colorLabelBG)
			}
		}
	}

	drawText(img, x, y+10, label, c)
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
