// Package render draws lane counts and the signal suggestion onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-trafficlight/pkg/lane"
	"github.com/teslashibe/go-trafficlight/pkg/signal"
	"gocv.io/x/gocv"
)

// Overlay colors
var (
	Lane1Color   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Lane2Color   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	DividerColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	TimeColor    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// LaneColor returns the box color for l
func LaneColor(l lane.Lane) color.RGBA {
	if l == lane.Lane1 {
		return Lane1Color
	}
	return Lane2Color
}

// Label is one line of overlay text
type Label struct {
	Text      string
	Origin    image.Point
	Scale     float64
	Color     color.RGBA
	Thickness int
}

// Labels lays out the overlay text for a frame of the given size
func Labels(width, height int, d signal.Decision) []Label {
	return []Label{
		{
			Text:      fmt.Sprintf("Lane 1 Vehicles: %d", d.Counts.Lane1),
			Origin:    image.Pt(20, 40),
			Scale:     0.9,
			Color:     Lane1Color,
			Thickness: 2,
		},
		{
			Text:      fmt.Sprintf("Lane 2 Vehicles: %d", d.Counts.Lane2),
			Origin:    image.Pt(width/2+20, 40),
			Scale:     0.9,
			Color:     Lane2Color,
			Thickness: 2,
		},
		{
			Text:      fmt.Sprintf("GREEN: %s", d.GreenLane),
			Origin:    image.Pt(20, height-60),
			Scale:     1.1,
			Color:     Lane1Color,
			Thickness: 3,
		},
		{
			Text:      fmt.Sprintf("Green Time: %d sec", d.Seconds()),
			Origin:    image.Pt(20, height-20),
			Scale:     1.0,
			Color:     TimeColor,
			Thickness: 2,
		},
	}
}

// Annotate draws vehicle boxes, the lane divider and the decision text
func Annotate(frame *gocv.Mat, assignments []lane.Assignment, d signal.Decision) {
	width, height := frame.Cols(), frame.Rows()

	for _, a := range assignments {
		gocv.Rectangle(frame, a.Detection.Box.Canon(), LaneColor(a.Lane), 2)
	}

	gocv.Line(frame, image.Pt(width/2, 0), image.Pt(width/2, height), DividerColor, 2)

	for _, l := range Labels(width, height, d) {
		gocv.PutText(frame, l.Text, l.Origin, gocv.FontHersheySimplex, l.Scale, l.Color, l.Thickness)
	}
}
