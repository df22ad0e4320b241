package botevent

import "testing"

func replies(ps ...Progression) []*ResponderResponse {
	out := make([]*ResponderResponse, 0, len(ps))
	for i, p := range ps {
		out = append(out, &ResponderResponse{
			ResponderID: string(rune('a' + i)),
			Response:    &BotEventResponse{Progression: p},
		})
	}
	return out
}

func TestPolicyDecide(t *testing.T) {
	const (
		c = ProgressionContinue
		b = ProgressionBlock
		d = ProgressionDefer
	)
	tests := []struct {
		name         string
		policy       Policy
		behavior     Behavior
		responses    []*ResponderResponse
		want         Progression
		wantBlocking bool
	}{
		{"passive ignores blocks", Policy{}, Behavior{Mode: ModePassive}, replies(b, b), c, false},
		{"passive interceptable follows majority", Policy{}, Behavior{Mode: ModePassive, Interceptable: true}, replies(b, b, c), b, true},
		{"approval veto", Policy{}, Behavior{Mode: ModeApproval}, replies(c, c, b), b, true},
		{"approval no responses", Policy{}, Behavior{Mode: ModeApproval}, nil, c, true},
		{"interceptable majority", Policy{}, Behavior{Mode: ModeInterceptable}, replies(d, d, c), d, true},
		{"interceptable tie", Policy{}, Behavior{Mode: ModeInterceptable}, replies(c, b), b, true},
		{"consensus default majority met", Policy{}, Behavior{Mode: ModeConsensus}, replies(c, c, b), c, true},
		{"consensus default majority missed", Policy{}, Behavior{Mode: ModeConsensus}, replies(c, b, d), b, true},
		{"consensus explicit quorum", Policy{Quorum: 3}, Behavior{Mode: ModeConsensus}, replies(c, c, b), b, true},
		{"unknown mode majority", Policy{}, Behavior{Mode: "OTHER"}, replies(c, c, b), c, true},
		{
			"malformed entries ignored",
			Policy{},
			Behavior{Mode: ModeApproval},
			append(replies(c), nil, &ResponderResponse{ResponderID: "x"}),
			c, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, blocking := tt.policy.Decide(tt.behavior, tt.responses)
			if got != tt.want || blocking != tt.wantBlocking {
				t.Errorf("Decide() = (%s, %t), want (%s, %t)", got, blocking, tt.want, tt.wantBlocking)
			}
		})
	}
}
