package controller

// Progress is the client-held view of one batch lifecycle. It is owned
// by the Controller and handed to the View by value, so observers can
// never mutate controller state through it.
type Progress struct {
	// Fetched is the number of records the service reports as resolved.
	Fetched int

	// Total is the size of the most recently submitted batch. Zero when
	// no batch lifecycle is open.
	Total int

	// Active is true while a submission round-trip or poll loop is
	// working on a batch.
	Active bool
}

// Percent returns batch completion as a percentage. With no open batch
// (Total == 0) progress is undefined and reported as 0. The service
// cache may contain records beyond the current batch, so the value is
// clamped to 100.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Fetched) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
