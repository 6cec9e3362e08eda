// Package dispatch provides the serial task loop and the panic-safe executor
// used by the key mapper.
//
// # Loop
//
// Loop runs tasks one at a time on a dedicated goroutine. Key events, timer
// callbacks and configuration changes are all submitted to the same loop so
// that detection state has a single owner.
//
//   - Post queues a task and returns immediately. It fails with ErrQueueFull
//     when the queue is at capacity. Timer callbacks use Post.
//   - Call queues a task and blocks until it has run. Key events use Call so
//     that the consume verdict can be returned synchronously.
//
// A panicking task is recovered and reported to the loop's PanicHandler; the
// loop keeps running.
//
// # Executor
//
// Executor runs Handlers with panic recovery, optional timeouts and timing.
// Firing dispatch uses ExecuteAll to perform a keymap's actions in declared
// order; one failing action does not prevent the next from running.
//
//	exec := dispatch.NewExecutor(
//	    dispatch.WithExecutorPanicHandler(func(event any, v any, stack []byte) {
//	        log.Error("panic in action", "value", v)
//	    }),
//	)
//	for _, r := range exec.ExecuteAll(ctx, firing, handlers) {
//	    if !r.IsSuccess() {
//	        // log and continue
//	    }
//	}
package dispatch
