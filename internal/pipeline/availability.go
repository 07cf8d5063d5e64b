package pipeline

import "sync"

// Availability tracks whether the inference capability is usable for
// this session. Construction failure is expensive, so once the backend
// is marked unavailable every later request skips straight to the
// fallback path until Reset is called (for example after a
// configuration change). This is explicit per-pipeline state, not a
// process-wide flag, so tests can inject an always-unavailable session.
type Availability struct {
	mu          sync.Mutex
	unavailable bool
	reason      error
}

// MarkUnavailable records that the backend is unusable and why. The
// first recorded reason wins.
func (a *Availability) MarkUnavailable(reason error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.unavailable {
		a.unavailable = true
		a.reason = reason
	}
}

// Unavailable reports whether the backend has been marked unusable,
// along with the recorded reason.
func (a *Availability) Unavailable() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unavailable, a.reason
}

// Reset clears the unavailable state so the next request retries
// backend construction.
func (a *Availability) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unavailable = false
	a.reason = nil
}
