// Package submitguard rejects a second submission of the same form while
// the first is still marked as submitting.
//
// The mark is time-boxed: it is cleared Window after it was set, whatever
// happened to the request. A submission slower than the window can therefore
// be repeated; the guard only absorbs double clicks and impatient re-sends.
//
//	g := submitguard.New(submitguard.NewMemoryStore(clock.NewReal()))
//	r.With(g.Middleware).Post("/api/snapshots", createSnapshot)
package submitguard
