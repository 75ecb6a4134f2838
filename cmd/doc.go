// Package cmd implements the command-line interface for the strom RPC
// layer. It provides a hierarchical command structure for running a node
// host and for benchmarking the connection cache.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring a node host
//   - perf: Connection churn benchmark for the sharded connection cache
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See strom -help for a list of all commands.
package cmd
