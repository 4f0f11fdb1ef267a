package driver

// Stats tallies every descriptor a run received and the bucket it ended in.
//
// Total counts each descriptor the providers delivered, including
// duplicates. Ignored covers duplicates and blacklist hits, Planned covers
// dry-run dispatches, and Succeeded/Failed cover real sync outcomes.
type Stats struct {
	Total     int
	Ignored   int
	Planned   int
	Succeeded int
	Failed    int
}

// Consistent reports whether every counted descriptor landed in exactly one
// bucket. It holds at the end of every run that was not canceled.
func (s Stats) Consistent() bool {
	return s.Total == s.Ignored+s.Planned+s.Succeeded+s.Failed
}
