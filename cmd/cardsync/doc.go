// Package main hosts the cardsync CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, builds
// the catalog, timeline and cache collaborators, and hands them to the
// reconcile package. Commands print tables on terminals and tab-separated
// output when piped.
//
// Keep this package lean: new behavior belongs in the internal packages and is
// surfaced here through flags or subcommands.
package main
