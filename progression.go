package botevent

// aggregateOptions holds the aggregation policy (unexported)
type aggregateOptions struct {
	blockOnFirst      bool
	continueThreshold int
	thresholdSet      bool
}

// AggregateOption configures AggregateProgression.
type AggregateOption func(*aggregateOptions)

// BlockOnFirst makes a single block verdict veto the event.
func BlockOnFirst() AggregateOption {
	return func(o *aggregateOptions) {
		o.blockOnFirst = true
	}
}

// ContinueThreshold requires at least n continue verdicts for the event to
// proceed. Falling short of the quorum blocks.
func ContinueThreshold(n int) AggregateOption {
	return func(o *aggregateOptions) {
		o.continueThreshold = n
		o.thresholdSet = true
	}
}

// majorityOrder fixes the iteration order of the tally.
var majorityOrder = [...]Progression{
	ProgressionContinue,
	ProgressionBlock,
	ProgressionDefer,
	ProgressionRetry,
}

// AggregateProgression folds responder verdicts into one decision.
//
// Rules, first match wins:
//   - no responses: continue
//   - BlockOnFirst and any block: block
//   - ContinueThreshold(n): continue if at least n continue, else block
//   - majority: the single most common verdict; any tie for the top is block
//
// Nil entries are ignored. The result does not depend on input order.
func AggregateProgression(responses []*BotEventResponse, opts ...AggregateOption) Progression {
	o := &aggregateOptions{}
	for _, opt := range opts {
		opt(o)
	}

	counts := make(map[Progression]int, len(majorityOrder))
	total := 0
	for _, r := range responses {
		if r == nil {
			continue
		}
		total++
		counts[r.Progression]++
	}

	if total == 0 {
		return ProgressionContinue
	}

	if o.blockOnFirst && counts[ProgressionBlock] > 0 {
		return ProgressionBlock
	}

	if o.thresholdSet {
		if counts[ProgressionContinue] >= o.continueThreshold {
			return ProgressionContinue
		}
		return ProgressionBlock
	}

	maxCount := 0
	winners := 0
	winner := ProgressionBlock
	for _, p := range majorityOrder {
		c := counts[p]
		switch {
		case c > maxCount:
			maxCount = c
			winners = 1
			winner = p
		case c == maxCount && c > 0:
			winners++
		}
	}
	if winners != 1 {
		return ProgressionBlock
	}
	return winner
}
