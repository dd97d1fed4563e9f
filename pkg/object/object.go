// Package object holds the detector-independent description of what a
// model found in a frame. It has no native dependencies.
package object

import "image"

// Detection is one object found in a frame.
// Box corners are in pixel coordinates of the frame passed to the detector.
type Detection struct {
	ClassID    int             `json:"class_id"`
	ClassName  string          `json:"class_name"`
	Confidence float32         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Center returns the box center using floor division.
func (d Detection) Center() (x, y int) {
	return FloorDiv(d.Box.Min.X+d.Box.Max.X, 2), FloorDiv(d.Box.Min.Y+d.Box.Max.Y, 2)
}

// FloorDiv divides rounding toward negative infinity.
// Boxes clipped at the frame edge can have negative corners.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
