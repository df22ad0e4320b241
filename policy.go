package botevent

// Policy maps an event behavior to an aggregation rule. Bus implementations
// use it so that every transport reaches the same decision for the same
// verdicts.
type Policy struct {
	// Quorum is the number of continue verdicts a CONSENSUS event needs.
	// Zero or negative means a simple majority of the valid responses.
	Quorum int
}

// Decide aggregates responder verdicts according to the behavior mode and
// reports whether the emitter was held on the outcome.
//
// PASSIVE events always continue. APPROVAL events are vetoed by any block.
// INTERCEPTABLE events follow the majority. CONSENSUS events need a quorum.
// Unknown modes fall back to the majority rule.
func (p Policy) Decide(b Behavior, responses []*ResponderResponse) (Progression, bool) {
	wasBlocking := b.Mode != ModePassive || b.Interceptable
	valid := validResponses(responses)

	switch b.Mode {
	case ModePassive:
		if !b.Interceptable {
			return ProgressionContinue, false
		}
		return AggregateProgression(valid), wasBlocking
	case ModeApproval:
		return AggregateProgression(valid, BlockOnFirst()), wasBlocking
	case ModeConsensus:
		quorum := p.Quorum
		if quorum <= 0 {
			quorum = len(valid)/2 + 1
		}
		return AggregateProgression(valid, ContinueThreshold(quorum)), wasBlocking
	default:
		return AggregateProgression(valid), wasBlocking
	}
}
