package hci

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRequestAlreadyPending is returned when a connection issues a second crypto request.
	ErrRequestAlreadyPending = errors.New("crypto request already pending")
	ErrUnknownConnection     = errors.New("unknown connection handle")
	ErrBondNotFound          = errors.New("bond information not found")
)

// ErrCommand is an HCI status code returned by the controller [Vol 2, Part D].
type ErrCommand byte

const (
	ErrUnknownCommand       ErrCommand = 0x01
	ErrConnID               ErrCommand = 0x02
	ErrHardware             ErrCommand = 0x03
	ErrAuth                 ErrCommand = 0x05
	ErrPinMissing           ErrCommand = 0x06
	ErrMemory               ErrCommand = 0x07
	ErrInvalidParameters    ErrCommand = 0x12
	ErrRemoteUser           ErrCommand = 0x13
	ErrLocalHost            ErrCommand = 0x16
	ErrCommandDisallowed    ErrCommand = 0x0C
	ErrUnsupportedParameter ErrCommand = 0x11
	ErrUnspecified          ErrCommand = 0x1F
	ErrMICFailure           ErrCommand = 0x3D
)

var errCommandNames = map[ErrCommand]string{
	ErrUnknownCommand:       "unknown HCI command",
	ErrConnID:               "unknown connection identifier",
	ErrHardware:             "hardware failure",
	ErrAuth:                 "authentication failure",
	ErrPinMissing:           "PIN or key missing",
	ErrMemory:               "memory capacity exceeded",
	ErrCommandDisallowed:    "command disallowed",
	ErrUnsupportedParameter: "unsupported feature or parameter value",
	ErrInvalidParameters:    "invalid HCI command parameters",
	ErrRemoteUser:           "remote user terminated connection",
	ErrLocalHost:            "connection terminated by local host",
	ErrUnspecified:          "unspecified error",
	ErrMICFailure:           "connection terminated due to MIC failure",
}

func (e ErrCommand) Error() string {
	if s, ok := errCommandNames[e]; ok {
		return s
	}
	return fmt.Sprintf("hci status 0x%02x", byte(e))
}
