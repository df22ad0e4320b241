package botevent

import "strings"

// reasonSeparator joins individual reasons.
const reasonSeparator = "; "

// AggregateReasons renders every non-empty reason as "<progression>: <reason>"
// joined by "; ", in input order. It returns false when no response carries
// a reason.
func AggregateReasons(responses []*BotEventResponse) (string, bool) {
	parts := make([]string, 0, len(responses))
	for _, r := range responses {
		if r == nil || r.Reason == "" {
			continue
		}
		parts = append(parts, string(r.Progression)+": "+r.Reason)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, reasonSeparator), true
}

// blockReason builds the caller-facing reason for a result that does not
// proceed. Reasons are joined without the progression prefix.
func blockReason(entries []*ResponderResponse) string {
	responses := validResponses(entries)
	if len(responses) == 0 {
		return ReasonNotProvided
	}
	reasons := make([]string, 0, len(responses))
	for _, r := range responses {
		if r.Reason != "" {
			reasons = append(reasons, r.Reason)
		}
	}
	if len(reasons) == 0 {
		return ReasonBlockedNoWhy
	}
	return strings.Join(reasons, reasonSeparator)
}
