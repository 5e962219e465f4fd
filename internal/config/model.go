// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file holds the structures every loader must produce.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// DefaultTagPrefix is the ref prefix that marks a tag-shaped trigger.
const DefaultTagPrefix = "refs/tags/"

// Pipeline is the format-agnostic representation of a pipeline file.
type Pipeline struct {
	Name        string
	Source      string
	Trigger     *Trigger
	Permissions Permissions
	Env         map[string]hcl.Expression
	Jobs        []*Job
}

// Trigger lists the activation reasons a pipeline accepts.
type Trigger struct {
	// Events holds the accepted event names, e.g. "manual".
	Events []string
	// TagPrefix decides whether a ref counts as a release tag.
	TagPrefix string
}

// Accepts reports whether the pipeline may be started by the named event.
func (t *Trigger) Accepts(event string) bool {
	if t == nil {
		return false
	}
	for _, e := range t.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Permissions maps an access scope (e.g. "contents") to its level.
type Permissions map[string]string

// Job is the format-agnostic representation of a `job` block.
type Job struct {
	Name     string
	RunsOn   hcl.Expression
	Needs    []string
	If       hcl.Expression
	Matrix   *Matrix
	FailFast bool
	Secrets  []string
	Timeout  time.Duration
	Env      map[string]hcl.Expression
	Steps    []*Step
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	Name string
	Uses string
	If   hcl.Expression
	With map[string]hcl.Expression
	Env  map[string]hcl.Expression
}

// Job returns the job with the given name, or nil.
func (p *Pipeline) Job(name string) *Job {
	for _, j := range p.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// SecretNames returns every secret name declared by any job in the pipeline.
func (p *Pipeline) SecretNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, j := range p.Jobs {
		for _, s := range j.Secrets {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			names = append(names, s)
		}
	}
	return names
}
