package client

// SubmissionSignal carries the host-page context observed when the
// submission counter element mutates.
type SubmissionSignal struct {
	// Counter is the value of the guessed counter at observation time.
	Counter int
	// BoxValue is the answer box content at observation time. Some host
	// pages reset the box as part of validation before the mutation settles.
	BoxValue string
}

// SubmissionDetector decides whether an observed counter mutation was a
// genuine local submission. The host page exposes no direct submission
// event and its observable behavior differs across quiz types, so the
// heuristic is pluggable rather than hard-coded.
type SubmissionDetector interface {
	Submitted(sig SubmissionSignal) bool
}

// CounterMutationDetector treats every counter mutation as a submission.
// This matches hosts that only touch the counter when an answer lands.
type CounterMutationDetector struct{}

func (CounterMutationDetector) Submitted(SubmissionSignal) bool { return true }

// CounterAdvanceDetector accepts a mutation only when the guessed counter
// actually advanced since the previous observation, filtering hosts that
// rewrite the counter element without changing its value.
type CounterAdvanceDetector struct {
	last   int
	primed bool
}

func (d *CounterAdvanceDetector) Submitted(sig SubmissionSignal) bool {
	advanced := sig.Counter > d.last
	if !d.primed {
		advanced = sig.Counter > 0
	}
	d.last = sig.Counter
	d.primed = true
	return advanced
}
