/*
Package log provides structured logging for horao using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper
functions for common logging patterns.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package, thread-safe for concurrent writes

Log Levels: Debug, Info, Warn, Error, Fatal (Fatal exits the process).

Configuration:
  - Level: filters messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for the log destination (stdout, file)

Context Loggers:
  - WithComponent: attach a component name to all subsequent logs
  - WithPeerID: attach the sending/receiving peer's id
  - WithResourceID: attach a resource id
  - WithClaimID: attach a claim id

# Usage

	import "github.com/witlox/horao/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("peer started")

	gossipLog := log.WithComponent("gossip")
	gossipLog.Info().Str("peer_id", "p2").Msg("delta flushed")

	claimLog := log.WithClaimID("c-123")
	claimLog.Warn().Msg("admission deadline exceeded, reverting to pending")

# Design Patterns

The global Logger is initialized once at process start and passed down
implicitly; component and entity loggers are child loggers created with
.With() so context fields propagate without being re-specified at every
call site. Errors are always logged with .Err(err) rather than string
interpolation, so aggregation tools can key on the error field.

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
