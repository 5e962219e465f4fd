// Package expr evaluates the HCL expressions carried by the pipeline model.
//
// Every job instance owns a Scope: the trigger that started the run, the
// instance's matrix entry, the job environment, the secrets that job
// declared and the outputs of the steps that already ran. The Scope is
// turned into an hcl.EvalContext with a fixed function table, so that HCL and
// YAML pipelines evaluate identically.
package expr
