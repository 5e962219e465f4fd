// Package jobrunner executes one job instance: it prepares a private
// workspace, resolves only the secrets the job declares, evaluates the
// instance's expressions and runs the steps in order through the action
// registry.
package jobrunner
