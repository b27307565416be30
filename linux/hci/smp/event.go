package smp

import (
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/toolbox"
)

// Event is a notification from a Host to the upper layer.
type Event interface {
	ConnectionHandle() uint16
}

// EventHandler receives Host notifications on the run loop goroutine.
type EventHandler func(Event)

type connEvent struct {
	Handle uint16
}

func (e connEvent) ConnectionHandle() uint16 { return e.Handle }

type PairingStarted struct {
	connEvent
	Role Role
}

// PasskeyDisplay asks the upper layer to show Passkey to the user.
type PasskeyDisplay struct {
	connEvent
	Passkey uint32
}

// PasskeyInput asks the upper layer for the passkey; answer with Host.PasskeyReply.
type PasskeyInput struct {
	connEvent
}

// NumericComparisonRequest asks the user to compare Value; answer with Host.ConfirmReply.
type NumericComparisonRequest struct {
	connEvent
	Value uint32
}

type Keypress struct {
	connEvent
	Type byte
}

// IdentityResolved reports that a resolvable private address belongs to a bonded identity.
type IdentityResolved struct {
	connEvent
	Addr     blesm.Addr
	Identity blesm.Addr
}

type EncryptionChanged struct {
	connEvent
	Enabled bool
	Status  byte
}

type PairingComplete struct {
	connEvent
	Method            Method
	Authenticated     bool
	SecureConnections bool
	Bonded            bool
	KeySize           int
	Peer              blesm.Addr
}

// PairingFailed ends an attempt. Err is a *ProtocolError for protocol failures and
// a sentinel or resource error otherwise.
type PairingFailed struct {
	connEvent
	Reason Reason
	Remote bool
	Err    error
}

// event is an input of the transition function. PDUs decoded by decodePDU are events too.
type event interface{}

type evStart struct{}
type evRequestSecurity struct{}
type evEncrypt struct{}

type evCrypto struct {
	out [16]byte
	err error
}

type evPasskey struct {
	passkey uint32
	ok      bool
}

type evConfirm struct{ ok bool }

type evEncryptionChanged struct {
	status  byte
	enabled bool
}

type evLTKRequest struct {
	ediv uint16
	rand uint64
}

type evTimeout struct{}
type evDisconnect struct{}
type evResourceError struct{ err error }
type evBondStored struct{ err error }

// action is an output of the transition function, carried out by the Conn.
type action interface{}

type actSend struct{ pdu []byte }

type actEncrypt struct {
	key, plaintext [16]byte
}

type actRandom struct{}

type actStartEncryption struct {
	ltk  [16]byte
	ediv uint16
	rand uint64
}

type actReplyLTK struct {
	ltk [16]byte
	ok  bool
}

type actNotify struct{ ev Event }
type actStoreBond struct{ bond hci.BondInfo }
type actStartTimer struct{}
type actStopTimer struct{}
type actCancelCrypto struct{}

// env is the read-only context of one connection handed to the transition function.
type env struct {
	handle   uint16
	cfg      *config
	role     Role
	local    blesm.Addr
	peer     blesm.Addr
	identity blesm.Addr
	irk      [16]byte
	dhk      [16]byte

	encrypted bool
	bond      *hci.BondInfo

	newKeyPair func() (*toolbox.KeyPair, error)
}

func (e *env) conn() connEvent {
	return connEvent{Handle: e.handle}
}
