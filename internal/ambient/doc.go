// Package ambient provides typed, scoped ambient values that travel with the
// current logical execution instead of being threaded through every function
// signature.
//
// # Declaring a context type
//
// Any Go type opts in by declaring a key, usually as a package level variable:
//
//	type TraceID string
//
//	var TraceIDs = ambient.Declare[TraceID]("trace_id")
//
// Each key owns its own storage slot. There is no shared registry and no
// runtime type assertion on the read path.
//
// # Synchronous scopes
//
// Values are pushed for the dynamic extent of a function and popped on every
// exit path, including panics:
//
//	TraceIDs.Run("abc", func() {
//	    handle() // TraceIDs.Current() == "abc" anywhere below
//	})
//
// Storage is per goroutine. A value set on one goroutine is never visible on
// another unless it is carried there explicitly with a [Snapshot].
//
// # Suspended work
//
// A [Task] is a unit of work driven forward by repeated Poll calls, possibly
// from different goroutines and interleaved with unrelated tasks. [Wrap],
// [WithCurrent] and [WithValue] decorate a task so that every Poll runs with
// the captured values attached, and the polling goroutine's own values are
// restored before Poll returns:
//
//	task := ambient.WithCurrent(job, TraceIDs, TenantIDs)
//	driver.Spawn(task) // any worker may poll it; each poll sees the captured ids
//
// # Goroutines
//
// [Go], [Snapshot.Func] and [Group] carry a captured snapshot into new
// goroutines, the equivalent of spawning a task with the current context.
package ambient
