// Package dag is the execution layer. It expands a pipeline into one node per
// job instance, links every instance to all instances of the jobs it needs,
// and executes the graph with a pool of workers.
//
// Execution follows all-succeed join semantics: an instance runs only when
// every instance it needs has succeeded, otherwise it is skipped with the
// reason recorded. A failure never cancels unrelated work; the only
// cancellation is the opt-in fail_fast of a matrix, which stops the failed
// instance's siblings.
package dag
