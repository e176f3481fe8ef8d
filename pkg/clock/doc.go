// Package clock provides the scheduler used for timer-driven lifecycles.
//
// A Scheduler runs a continuation once after a delay. There is no cancel:
// once scheduled, a continuation always runs, and it is the callee's job to
// notice that whatever it was meant to touch is already gone.
//
// Real schedules on time.AfterFunc. Virtual is a manually advanced clock for
// tests: Advance runs every due continuation in due-time order (ties in
// scheduling order), including continuations scheduled while advancing.
//
//	vc := clock.NewVirtual(time.Unix(0, 0))
//	vc.AfterFunc(10*time.Millisecond, func() { fmt.Println("tick") })
//	vc.Advance(10 * time.Millisecond) // prints "tick"
package clock
