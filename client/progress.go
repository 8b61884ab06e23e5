package client

// Progress counts completed units of a transfer. Total is -1 while unknown.
type Progress struct {
	Completed int64
	Total     int64
}

// Fraction returns Completed/Total, or 0 while Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Finished reports whether a known total has been reached.
func (p Progress) Finished() bool {
	return p.Total >= 0 && p.Completed >= p.Total
}

// advance returns p moved to completed of total without ever going
// backwards. A negative total keeps the current one.
func (p Progress) advance(completed, total int64) Progress {
	if completed > p.Completed {
		p.Completed = completed
	}
	if total >= 0 {
		p.Total = total
	}
	return p
}
