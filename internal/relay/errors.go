package relay

import "errors"

var (
	// ErrServerClosed - returned when Server is under stop condition
	// and will not accept any new peers, so you should close such connection by your own.
	ErrServerClosed = errors.New("relay.Server: closed")

	// ErrPeerKept - returned in case if peer is kept already.
	// Do not close such peer after this error, otherwise its running session will be dropped.
	ErrPeerKept = errors.New("relay.Server: peer is kept already")
)
