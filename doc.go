// Package botevent publishes system events to autonomous responders and
// folds their verdicts into a single decision the emitter must honor.
//
// Responders (bots, agents, policy checks) answer each event with a
// progression: continue, block, defer or retry. The bus collects the answers
// and the publisher reduces them to a proceed flag. Every ambiguous outcome
// resolves to block: ties, unknown progression values and missing quorums
// never let an event through.
//
// Basic example:
//
//	registry := botevent.NewRegistry()
//	registry.Set("security/*", botevent.Behavior{
//	    Mode:            botevent.ModeApproval,
//	    Interceptable:   true,
//	    DefaultPriority: botevent.PriorityHigh,
//	})
//
//	bus := local.New(local.WithRegistry(registry))
//	bus.Subscribe("security/alert", "scanner", botevent.ResponderFunc(
//	    func(ctx context.Context, env *botevent.Envelope) (*botevent.BotEventResponse, error) {
//	        return &botevent.BotEventResponse{Progression: botevent.ProgressionBlock, Reason: "Security concern detected"}, nil
//	    }))
//
//	pub, err := botevent.NewPublisher(bus, botevent.WithRegistry(registry))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := pub.Emit(ctx, "security/alert", alert, nil)
//	if err != nil {
//	    return err // bus failure, passed through unchanged
//	}
//	if !res.Proceed() {
//	    return fmt.Errorf("blocked: %s", res.Reason())
//	}
//
// Aggregation:
//   - AggregateProgression: majority by default; BlockOnFirst and
//     ContinueThreshold select veto and quorum rules
//   - AggregateReasons: "<progression>: <reason>" joined by "; "
//   - Policy: picks the rule from the event behavior mode
//
// Publisher Options:
//   - WithRegistry: behavior registry. Default is an empty Registry (PASSIVE).
//   - WithDevelopment: enable usage tracking. Default is false.
//   - WithUsageValidator: where usage is tracked. Default is usage.Nop.
//   - WithTracing: enable/disable OpenTelemetry tracing. Default is true.
//   - WithMetrics: enable/disable OpenTelemetry metrics. Default is true.
//   - WithLogger: set logger for the publisher.
//
// Responder middleware:
//   - Chain: wrap a responder, first middleware outermost
//   - LoggingMiddleware: log verdicts and failures with the context logger
//   - CircuitBreakerMiddleware: stop calling a responder that keeps failing
//
// Buses:
//   - transport/local: in-process responders
//   - transport/nats: responders behind NATS request/reply
//
// Settings can come from a YAML file and the environment, see package config.
package botevent
