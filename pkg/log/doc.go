/*
Package log provides structured logging for the flowplane control plane
using zerolog.

The package wraps a single global zerolog.Logger with JSON or console
output, a configurable level, and a small set of helpers for attaching
context fields — component, team, proxy, and stream — to the loggers
each subsystem keeps for its own lifetime.

# Usage

	import "github.com/flowplane/flowplane/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true, // JSON in production, console writer in dev
	})

Component Loggers:

The materializer, the xDS server, the REST API and the flowplaned serve
command each build a named logger with WithComponent:

	logger := log.WithComponent("materializer")
	logger.Info().Str("definition", def.ID).Msg("api definition created")

Context Loggers:

WithTeam and WithProxyID scope a component logger to the tenant or
connected proxy an operation concerns, so log lines from a concurrent
materializer write or ADS stream can be filtered to the team or node
that produced them:

	teamLog := log.WithTeam(logger, def.TeamID)
	teamLog.Info().Msg("definition materialized")

	streamLog := log.WithStreamID(log.WithProxyID(logger, sess.NodeID), streamID)
	streamLog.Info().Msg("xds stream opened")

# Security

Log lines never include secret bytes, password hashes, or bearer
tokens — only resource identifiers and outcomes, matching pkg/storage's
audit-row redaction.
*/
package log
