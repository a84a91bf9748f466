package resolve

import "errors"

// Terminal conditions surfaced to callers once every variant and mirror is
// exhausted. Transient per-mirror failures are swallowed along the way.
var (
	// ErrNoCandidates: every query variant on every mirror produced zero
	// listing entries.
	ErrNoCandidates = errors.New("no matching catalog entries found")

	// ErrNoWatchTrigger: the landing page had no resolvable gate link.
	ErrNoWatchTrigger = errors.New("no watch trigger found on landing page")

	// ErrGateUnresolved: the gate page yielded no final URL via any strategy.
	ErrGateUnresolved = errors.New("could not resolve final watch URL")

	// ErrUpstreamFetch wraps the offending status or transport reason from a
	// terminal fetch failure.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
