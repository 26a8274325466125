// Package session holds the coordination core of a voting session: slot
// allocation, score aggregation and snapshot building. All state lives in
// the ledger; the types here are stateless and safe for concurrent use.
package session
