// Package poller drives ambient.Task values to completion on a fixed pool of
// worker goroutines.
//
// A task that reports it is still pending goes back on the run queue and its
// next poll is made by whichever worker picks it up, so successive polls of
// one task routinely migrate between goroutines and interleave with other
// tasks. That is the environment ambient.Wrapped is built for. The driver is
// deliberately small: no priorities, no wakers, no work stealing.
package poller
