// Package validation runs the fixed sequence of validation stages against a
// transferred artifact.
//
// # Stages
//
// Stages always run in this order, each through the remote command runner
// under its own timeout:
//
//  1. install: install the formatter and test runner (advisory)
//  2. presence: check both tools are on PATH; empty output aborts the run
//  3. format: formatter in check-only mode (advisory)
//  4. test: test runner against the artifact (advisory)
//  5. execute: run the artifact; the only stage that gates publishing
//
// Advisory stages are recorded and never stop the run. Commands come from a
// toolchain Profile, either the embedded "python" profile or a YAML file.
//
// # Usage
//
//	profile, _ := validation.LoadProfile("python")
//	runner := validation.NewRunner(sshRunner, profile, validation.Options{})
//	results, err := runner.RunStages(ctx, handle.Endpoint, profile.Filename)
package validation
