package smp

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrPairingTimedOut   = errors.New("pairing timed out")
	ErrDisconnected      = errors.New("disconnected")
	ErrPairingInProgress = errors.New("pairing already in progress")
	ErrWrongRole         = errors.New("operation not allowed in this role")
	ErrNotWaiting        = errors.New("no user input requested")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNoBond            = errors.New("no bond for peer")
)

// ProtocolError is the outcome of a pairing attempt that ended with a Pairing Failed reason.
// Remote is set when the peer sent the reason.
type ProtocolError struct {
	Reason Reason
	Remote bool
}

func (e *ProtocolError) Error() string {
	if e.Remote {
		return fmt.Sprintf("pairing failed by peer: %v", e.Reason)
	}
	return fmt.Sprintf("pairing failed: %v", e.Reason)
}
