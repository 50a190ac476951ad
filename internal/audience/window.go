package audience

import "time"

// Window is the lookback interval event queries are restricted to.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowAt is recomputed on every call: callers pass their own clock reading.
func WindowAt(now time.Time, d time.Duration) Window {
	return Window{Start: now.Add(-d), End: now}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
