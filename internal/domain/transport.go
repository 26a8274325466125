package domain

import "errors"

// ErrConnectionGone is reported by a transport when the target connection is
// permanently unreachable. The sender reacts by pruning the connection from
// the ledger; it is never surfaced to broadcast callers.
var ErrConnectionGone = errors.New("connection gone")
