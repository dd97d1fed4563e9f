package detection

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-trafficlight/pkg/object"
	"gocv.io/x/gocv"
)

// classOffset separates boxes of different classes before NMS so that a
// car never suppresses an overlapping truck.
const classOffset = 7680

// candidates holds raw predictions that passed the confidence filter
type candidates struct {
	boxes    []image.Rectangle
	scores   []float32
	classIDs []int
}

func (c *candidates) len() int { return len(c.boxes) }

// decodeHead parses a YOLOv8/YOLO11 head laid out as [4+numClasses][anchors]:
// rows 0-3 hold center x, center y, width, height in model input pixels,
// the remaining rows hold per-class scores.
//
// scaleX and scaleY map model input pixels to frame pixels.
func decodeHead(data []float32, numClasses, anchors int, scaleX, scaleY, thresh float32) (*candidates, error) {
	rows := 4 + numClasses
	if len(data) < rows*anchors {
		return nil, fmt.Errorf("output holds %d floats, need %d (%d x %d)", len(data), rows*anchors, rows, anchors)
	}

	out := &candidates{}
	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClassID := 0
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > maxScore {
				maxScore = score
				maxClassID = c
			}
		}

		if maxScore < thresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		out.boxes = append(out.boxes, image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)})
		out.scores = append(out.scores, maxScore)
		out.classIDs = append(out.classIDs, maxClassID)
	}
	return out, nil
}

// suppress applies per-class non-maximum suppression and builds detections
func suppress(c *candidates, scoreThresh, nmsThresh float32) []Detection {
	if c.len() == 0 {
		return nil
	}

	shifted := make([]image.Rectangle, c.len())
	for i, box := range c.boxes {
		off := image.Pt(c.classIDs[i]*classOffset, c.classIDs[i]*classOffset)
		shifted[i] = box.Add(off)
	}

	indices := gocv.NMSBoxes(shifted, c.scores, scoreThresh, nmsThresh)

	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		detections = append(detections, Detection{
			ClassID:    c.classIDs[idx],
			ClassName:  object.ClassName(c.classIDs[idx]),
			Confidence: c.scores[idx],
			Box:        c.boxes[idx],
		})
	}
	return detections
}
