// Package registry connects the `uses` names written in pipelines to the Go
// actions that implement them.
//
// Each action module registers a constructor for its input struct and a
// function. When a step runs, its evaluated `with` attributes are decoded
// into a fresh input struct through the struct's `cty` tags, so pipelines
// and Go code agree on names and types. Registration happens at startup and
// panics on duplicates; ValidateRegistry then checks every input struct can
// actually be decoded into, before any pipeline is run.
package registry
