// Package lane splits vehicle detections into two lanes by the frame's
// vertical midline.
package lane

import (
	"fmt"
	"image"
	"sort"

	"github.com/teslashibe/go-trafficlight/pkg/object"
)

// Lane identifies one side of the frame
type Lane int

const (
	Lane1 Lane = 1 // left of the midline
	Lane2 Lane = 2 // on or right of the midline
)

// String renders the overlay label, e.g. "LANE 1"
func (l Lane) String() string {
	return fmt.Sprintf("LANE %d", int(l))
}

// VehicleClasses is an immutable set of detector class ids counted as vehicles.
type VehicleClasses struct {
	ids map[int]struct{}
}

// NewVehicleClasses builds a set from ids. Duplicates are ignored.
func NewVehicleClasses(ids ...int) VehicleClasses {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return VehicleClasses{ids: set}
}

// DefaultVehicleClasses returns car, motorcycle, bus and truck.
func DefaultVehicleClasses() VehicleClasses {
	return NewVehicleClasses(
		object.ClassCar,
		object.ClassMotorcycle,
		object.ClassBus,
		object.ClassTruck,
	)
}

// Contains reports whether id is a vehicle class
func (v VehicleClasses) Contains(id int) bool {
	_, ok := v.ids[id]
	return ok
}

// IDs returns the set in ascending order
func (v VehicleClasses) IDs() []int {
	out := make([]int, 0, len(v.ids))
	for id := range v.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of classes in the set
func (v VehicleClasses) Len() int {
	return len(v.ids)
}

// Counts holds per-lane vehicle totals for one frame
type Counts struct {
	Lane1 int `json:"lane_1"`
	Lane2 int `json:"lane_2"`
}

// Total returns the number of counted vehicles
func (c Counts) Total() int {
	return c.Lane1 + c.Lane2
}

// Of returns the count for l
func (c Counts) Of(l Lane) int {
	if l == Lane1 {
		return c.Lane1
	}
	return c.Lane2
}

// Assignment pairs a counted vehicle with its lane
type Assignment struct {
	Detection object.Detection `json:"detection"`
	Lane      Lane             `json:"lane"`
}

// AssignLane places a box by its center x: lane 1 iff center < width/2.
// Both divisions round toward negative infinity. Boxes are not validated.
func AssignLane(width int, box image.Rectangle) Lane {
	cx := object.FloorDiv(box.Min.X+box.Max.X, 2)
	if cx < object.FloorDiv(width, 2) {
		return Lane1
	}
	return Lane2
}

// Partition assigns every vehicle detection to a lane and counts them.
// Detections whose class is not in classes are dropped.
func Partition(classes VehicleClasses, width int, dets []object.Detection) ([]Assignment, Counts) {
	var counts Counts
	assignments := make([]Assignment, 0, len(dets))

	for _, d := range dets {
		if !classes.Contains(d.ClassID) {
			continue
		}

		l := AssignLane(width, d.Box)
		if l == Lane1 {
			counts.Lane1++
		} else {
			counts.Lane2++
		}
		assignments = append(assignments, Assignment{Detection: d, Lane: l})
	}

	return assignments, counts
}
