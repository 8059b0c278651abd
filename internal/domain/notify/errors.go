package notify

import "errors"

// ErrGone reports that a connection no longer exists at the push channel.
// Senders return it (possibly wrapped) so the fan-out can evict the record.
var ErrGone = errors.New("connection gone")
