package capture_test

import (
	"image"
	"image/color"
	"testing"

	"camqc-backend/internal/camera"
	"camqc-backend/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "A", capture.Label(0))
	assert.Equal(t, "Z", capture.Label(25))
	assert.Equal(t, "AA", capture.Label(26))
	assert.Equal(t, "AB", capture.Label(27))
	assert.Equal(t, "BA", capture.Label(52))
	assert.Equal(t, "", capture.Label(-1))

	markers := capture.NormalizeMarkers([]capture.Marker{{}, {Label: "X"}, {}})
	assert.Equal(t, []string{"A", "X", "C"}, []string{markers[0].Label, markers[1].Label, markers[2].Label})
}

func countChanged(a, b image.Image) int {
	n := 0
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := a.At(x, y).RGBA()
			r2, g2, b2, _ := b.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 {
				n++
			}
		}
	}
	return n
}

func hasRedNear(img image.Image, cx, cy, radius int) bool {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r > 0xc000 && g < 0x8000 && b < 0x8000 {
				return true
			}
		}
	}
	return false
}

func TestBurnMarkers(t *testing.T) {
	frame := camera.SolidFrame(200, 100, color.White)

	assert.Equal(t, frame, capture.BurnMarkers(frame, nil, 0, 0))

	// marker at the centre of a half size preview lands at the frame centre
	out := capture.BurnMarkers(frame, []capture.Marker{{Label: "A", X: 50, Y: 25, Angle: 45}}, 100, 50)
	require.Equal(t, frame.Bounds(), out.Bounds())
	assert.Positive(t, countChanged(frame, out))

	assert.True(t, hasRedNear(out, 100, 50, 3), "arrow tip is at the scaled position")

	r, g, b, _ := frame.At(100, 50).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "source is not modified")
}

func isWhite(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r > 0xf000 && g > 0xf000 && b > 0xf000
}

func TestBurnMarkerPointsDownRight(t *testing.T) {
	frame := camera.SolidFrame(200, 200, color.Black)

	// 45 degrees puts the label circle below and right of the tip, centred near (121,121)
	out := capture.BurnMarkers(frame, []capture.Marker{{Label: "A", X: 100, Y: 100, Angle: 45}}, 0, 0)

	assert.True(t, isWhite(out, 112, 121), "label circle below the tip")
	assert.False(t, isWhite(out, 112, 79), "nothing drawn above the tip")
	assert.True(t, hasRedNear(out, 100, 100, 3))
}

func TestRenderCheckboxes(t *testing.T) {
	ref := camera.SolidFrame(300, 300, color.White)
	points := []capture.InspectionPoint{{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 2, Y: -1}}

	unchecked := capture.RenderCheckboxes(ref, points, nil)
	checked := capture.RenderCheckboxes(ref, points, []bool{true, true, true})

	assert.Positive(t, countChanged(ref, unchecked))
	assert.Positive(t, countChanged(unchecked, checked))
}
