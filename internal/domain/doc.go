// Package domain defines the core domain types and interfaces.
//
// This package contains the ledger contract, change feed types, wire
// messages and the static country data. No implementation code - just
// contracts. Interfaces stay on the consumer side to prevent circular
// imports.
package domain
