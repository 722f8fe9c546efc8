// Package model defines the domain types and value objects for the
// graph-updater CLI.
//
// This package contains pure data structures with no external dependencies:
// image variants and references, the managed image/container records
// reconstructed from Docker labels, and the exit codes (ExitCode) and
// custom error type (CLIError) that carry process exit codes back to main.
package model
