package controller

// View is the rendering sink the controller drives. Implementations
// must not block for long: every call happens on the controller's
// submission or poll path.
type View interface {
	// ReplaceList swaps the displayed card list for freshly rendered
	// HTML. The fragment is already escaped; the view must not modify it.
	ReplaceList(html string)

	// UpdateProgress publishes the latest batch progress.
	UpdateProgress(p Progress)

	// Notice reports a success event (batch queued, batch complete).
	Notice(msg string)

	// Warn reports a locally recovered problem (e.g. empty input).
	Warn(msg string)

	// Error reports a failed request. The previously displayed list
	// stays as it is.
	Error(msg string)
}

// NopView discards everything. Useful when only the side effects on the
// service matter.
type NopView struct{}

func (NopView) ReplaceList(string)     {}
func (NopView) UpdateProgress(Progress) {}
func (NopView) Notice(string)          {}
func (NopView) Warn(string)            {}
func (NopView) Error(string)           {}
