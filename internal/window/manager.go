package window

import "time"

// Detector bundles the geometry resolver, stack walker and classifier
// over one WindowSystem.
type Detector struct {
	System     WindowSystem
	Resolver   *Resolver
	Classifier *Classifier
	Walker     *Walker
}

// Options tune a Detector.
type Options struct {
	// MinCaptureSize is the minimum width/height for pre-capture; negative selects the default
	MinCaptureSize int
	// SlowQueryWarning is the hit-test latency warning threshold; zero selects the default
	SlowQueryWarning time.Duration
}

// NewDetector wires a resolver, classifier and walker together.
func NewDetector(ws WindowSystem, opts Options) *Detector {
	resolver := NewResolver(ws)
	classifier := NewClassifier(ws, opts.MinCaptureSize)
	walker := NewWalker(ws, resolver, classifier)
	walker.SetSlowQueryWarning(opts.SlowQueryWarning)

	return &Detector{
		System:     ws,
		Resolver:   resolver,
		Classifier: classifier,
		Walker:     walker,
	}
}

// GetWindowAtPosition is Walker.GetWindowAtPosition.
func (d *Detector) GetWindowAtPosition(x, y int) WindowInfo {
	return d.Walker.GetWindowAtPosition(x, y)
}

// GetWindowAtPositionExcluding is Walker.GetWindowAtPositionExcluding.
func (d *Detector) GetWindowAtPositionExcluding(x, y int, exclude uint32) WindowInfo {
	return d.Walker.GetWindowAtPositionExcluding(x, y, exclude)
}

// GetVisibleWindows is Walker.GetVisibleWindows.
func (d *Detector) GetVisibleWindows() []WindowInfo {
	return d.Walker.GetVisibleWindows()
}

// FilterWindowsForCapture is Classifier.FilterWindowsForCapture.
func (d *Detector) FilterWindowsForCapture(windows []WindowInfo) []WindowInfo {
	return d.Classifier.FilterWindowsForCapture(windows)
}

// CapturableWindows returns visible windows that pass the pre-capture filter.
func (d *Detector) CapturableWindows() []WindowInfo {
	return d.Classifier.FilterWindowsForCapture(d.Walker.GetVisibleWindows())
}

// Describe is Walker.Describe.
func (d *Detector) Describe(win uint32) (WindowInfo, error) {
	return d.Walker.Describe(win)
}

// Desktop is Walker.Desktop.
func (d *Detector) Desktop() WindowInfo {
	return d.Walker.Desktop()
}
