package claim

// Status represents the claim lifecycle driven by the orchestrator.
//
//	uploaded -> processing -> adjudicating -> adjudicated (terminal)
//	                                       -> manual_review (terminal for automation)
//	                                       -> failed (terminal, retry-eligible)
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusProcessing   Status = "processing"
	StatusAdjudicating Status = "adjudicating"
	StatusAdjudicated  Status = "adjudicated"
	StatusManualReview Status = "manual_review"
	StatusFailed       Status = "failed"
)

var transitions = map[Status][]Status{
	StatusUploaded:     {StatusProcessing},
	StatusProcessing:   {StatusAdjudicating},
	StatusAdjudicating: {StatusAdjudicated, StatusManualReview, StatusFailed},
	// failed claims may be retried once the transient cause clears
	StatusFailed: {StatusAdjudicating},
}

// CanTransition reports whether moving from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether automation is done with the claim. manual_review
// counts: only an external human action moves it further.
func (s Status) Terminal() bool {
	return s == StatusAdjudicated || s == StatusManualReview || s == StatusFailed
}
