// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package config defines the format-agnostic pipeline model. Loaders for
// concrete syntaxes (HCL, YAML) translate their files into a *Pipeline; the
// dag and jobrunner packages only ever see this model.
//
// # Core Concepts
//
//   - Pipeline: the root container. It names the events it accepts, the
//     permissions it declares and the jobs it runs.
//
//   - Job: a unit that is scheduled on its own. A job may be expanded by a
//     Matrix into several independent instances, may need other jobs, and may
//     carry an `if` condition that turns it off for a given trigger.
//
//   - Step: one invocation of a registered action inside a job. Steps run
//     sequentially within their job instance.
//
// Values that depend on the run (matrix values, trigger fields, secrets,
// outputs of previous steps) are kept as raw hcl.Expression values and only
// evaluated once the job instance that owns them is running.
package config
