package push

import "errors"

// Sentinel kinds for the push hub.
var (
	ErrBufferFull = errors.New("outbound buffer full")
	ErrHubClosed  = errors.New("hub closed")
)
