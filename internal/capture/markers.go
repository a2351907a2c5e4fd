package capture

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	arrowLength  = 30.0
	arrowHead    = 8.0
	circleRadius = 12.0
	lineWidth    = 2.0
)

// BurnMarkers draws the markers onto a copy of img. Marker positions are given
// in a preview of size previewW x previewH and are scaled to the frame size.
// A zero preview size means the markers are already in frame coordinates.
func BurnMarkers(img image.Image, markers []Marker, previewW, previewH int) image.Image {
	if len(markers) == 0 {
		return img
	}

	bounds := img.Bounds()
	sx, sy := 1.0, 1.0
	if previewW > 0 && previewH > 0 {
		sx = float64(bounds.Dx()) / float64(previewW)
		sy = float64(bounds.Dy()) / float64(previewH)
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(lineWidth)

	for _, m := range markers {
		tipX, tipY := m.X*sx, m.Y*sy
		rad := gg.Radians(m.Angle)
		endX := tipX + arrowLength*math.Cos(rad)
		endY := tipY + arrowLength*math.Sin(rad)

		dc.SetRGB(1, 0, 0)
		dc.DrawLine(endX, endY, tipX, tipY)
		dc.Stroke()

		// head wings point back along the shaft
		back := math.Atan2(endY-tipY, endX-tipX)
		for _, off := range []float64{-math.Pi / 6, math.Pi / 6} {
			dc.DrawLine(tipX, tipY, tipX+arrowHead*math.Cos(back+off), tipY+arrowHead*math.Sin(back+off))
			dc.Stroke()
		}

		dc.DrawCircle(endX, endY, circleRadius)
		dc.SetRGB(1, 1, 1)
		dc.FillPreserve()
		dc.SetRGB(1, 0, 0)
		dc.Stroke()

		dc.DrawStringAnchored(m.Label, endX, endY, 0.5, 0.35)
	}

	return dc.Image()
}

// InspectionPoint is a checkbox position given as fractions of the image size.
type InspectionPoint struct {
	X float64
	Y float64
}

// RenderCheckboxes draws the inspection points on a copy of the reference
// image: green when checked, red otherwise. Points outside the image are
// clamped to its border.
func RenderCheckboxes(ref image.Image, points []InspectionPoint, checked []bool) image.Image {
	bounds := ref.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	size := math.Max(12, math.Min(w, h)/25)

	dc := gg.NewContextForImage(ref)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(3)

	for i, p := range points {
		x := math.Max(0, math.Min(1, p.X)) * w
		y := math.Max(0, math.Min(1, p.Y)) * h

		done := i < len(checked) && checked[i]
		if done {
			dc.SetRGB255(0x4C, 0xAF, 0x50)
		} else {
			dc.SetRGB255(0xF4, 0x43, 0x36)
		}

		dc.DrawRectangle(x-size/2, y-size/2, size, size)
		dc.Stroke()
		if done {
			dc.DrawLine(x-size/3, y, x-size/10, y+size/3)
			dc.DrawLine(x-size/10, y+size/3, x+size/3, y-size/3)
			dc.Stroke()
		}
		dc.DrawStringAnchored(Label(i), x+size, y, 0, 0.35)
	}

	return dc.Image()
}
