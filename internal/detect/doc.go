// Package detect recognizes key map triggers in a stream of key events.
//
// An Engine owns one matcher per detectable key map. Sequence triggers
// require their keys one after another, each classified as a short, long or
// double press, with at most SequenceTriggerTimeout between keys. Parallel
// triggers require every key to be held at the same time.
//
// For each key event the engine decides whether the event is consumed.
// A consumed press that no trigger ends up using is handed to a KeyImitator
// on release so the key keeps its normal function.
//
// Matched triggers fire through an ActionRunner, which checks the key map's
// constraints and then performs its actions in order. Action failures and
// panics are logged and counted, never propagated back into detection.
//
// All engine methods except Metrics and Snapshot must be called from a
// single serial loop:
//
//	loop := dispatch.NewLoop()
//	engine := detect.NewEngine(cfg, performer,
//	    detect.WithClock(clock.OnLoop(clock.Real(), loop, nil)))
package detect
