package render

import "gocv.io/x/gocv"

// DefaultTitle is the display window title
const DefaultTitle = "Smart Traffic Density Control (YOLO v11)"

// keyEscape is the code WaitKey returns for ESC
const keyEscape = 27

// Window shows annotated frames in a desktop window
type Window struct {
	win *gocv.Window
}

// NewWindow opens a display window
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultTitle
	}
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays frame and polls the keyboard for 1ms.
// It returns false once the operator presses ESC or closes the window.
func (w *Window) Show(frame gocv.Mat) bool {
	w.win.IMShow(frame)
	key := w.win.WaitKey(1)
	if key&0xFF == keyEscape {
		return false
	}
	return w.win.IsOpen()
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}
