// Package main hosts the reelpack CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into pack, unpack,
// and preview operations on a workflow.Manager, renders their progress events,
// and exposes inspection commands for archive indexes, operation history,
// external dependencies, and configuration. Configuration resolution and
// logger setup live in the shared command context so subcommands only handle
// flags and output.
package main
