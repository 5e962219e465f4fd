// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Validate performs static checks that do not require evaluating any
// expression. All problems are collected and returned together.
func (p *Pipeline) Validate() error {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if p.Name == "" {
		addf("pipeline has no name")
	}
	if p.Trigger == nil || len(p.Trigger.Events) == 0 {
		addf("pipeline %q declares no trigger events", p.Name)
	}
	for scope, level := range p.Permissions {
		switch level {
		case "read", "none":
		case "write":
			addf("permission %q requests write access, only read access can be granted", scope)
		default:
			addf("permission %q has unknown level %q", scope, level)
		}
	}
	if len(p.Jobs) == 0 {
		addf("pipeline %q has no jobs", p.Name)
	}

	jobs := make(map[string]bool, len(p.Jobs))
	for _, j := range p.Jobs {
		if !identRe.MatchString(j.Name) {
			addf("job name %q is not a valid identifier", j.Name)
		}
		if jobs[j.Name] {
			addf("job %q is defined more than once", j.Name)
		}
		jobs[j.Name] = true
	}

	for _, j := range p.Jobs {
		for _, need := range j.Needs {
			switch {
			case need == j.Name:
				addf("job %q needs itself", j.Name)
			case !jobs[need]:
				addf("job %q needs unknown job %q", j.Name, need)
			}
		}
		if len(j.Steps) == 0 {
			addf("job %q has no steps", j.Name)
		}
		steps := make(map[string]bool, len(j.Steps))
		for _, s := range j.Steps {
			if s.Name == "" {
				addf("job %q has a step without a name", j.Name)
			} else if steps[s.Name] {
				addf("job %q defines step %q more than once", j.Name, s.Name)
			}
			steps[s.Name] = true
			if s.Uses == "" {
				addf("step %q in job %q does not say which action it uses", s.Name, j.Name)
			}
		}
		declared := make(map[string]bool, len(j.Secrets))
		for _, name := range j.Secrets {
			declared[name] = true
		}
		for _, name := range j.SecretRefs() {
			if !declared[name] {
				addf("job %q reads secret %q without declaring it in secrets", j.Name, name)
			}
		}
		for _, axis := range axes(j) {
			if len(axis.Values) == 0 {
				addf("matrix axis %q of job %q has no values", axis.Name, j.Name)
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("invalid pipeline:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

func axes(j *Job) []Axis {
	if j.Matrix == nil {
		return nil
	}
	return j.Matrix.Axes
}
