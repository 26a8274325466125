// Package redis implements the durable ledger and its change feed on Redis.
//
// Coordination relies on three store primitives only: HSETNX as the
// conditional insert for slot claims, HINCRBY as the atomic score
// accumulator, and set membership for the connection registry. Every
// mutation publishes a change event on a pub/sub channel that feeds the
// propagator.
package redis
