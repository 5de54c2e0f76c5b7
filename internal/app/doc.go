// Package app contains the application services that orchestrate use cases.
// It coordinates domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (submitting and tracking jobs)
//   - Run background work on the poll driver with the submitter's ambient values
//   - Fan work out to goroutines without losing those values
//
// HTTP specifics belong to adapters; storage and downstream calls sit behind
// the interfaces in ports.
package app
