// Package toast shows transient notifications in a page's toast container.
//
// A Manager appends each notification to its Container, reveals it 10ms
// later, starts hiding it 5s after creation and detaches it 300ms after
// that. Every notification runs its own lifecycle state machine
//
//	Entering -> Visible -> Exiting -> Removed
//
// and a manual Dismiss jumps straight to Removed. Timers are never
// cancelled: a continuation that fires after its notification has moved on
// finds the transition rejected and does nothing.
//
// Containers decide where elements live. MemoryContainer keeps them in
// process; StreamContainer also publishes every change so the server can
// forward it to the browser as datastar patches.
//
//	m := toast.NewManager(toast.NewMemoryContainer(), clock.NewReal(),
//	    toast.WithLogger(log),
//	)
//	m.Success(ctx, "Snapshot created")
package toast
