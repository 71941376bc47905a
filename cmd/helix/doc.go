// Package main hosts the Helix CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against a running daemon, falling back to direct catalog access when
// none is reachable. Mutating operator commands always go through the store
// so they work whether or not a daemon is up. It centralizes configuration
// resolution and API discovery so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
