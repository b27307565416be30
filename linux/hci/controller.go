package hci

// Controller accepts HCI commands. Results arrive later as events passed to an EventHandler.
type Controller interface {
	Send(c Command) error
}

// EventHandler receives an HCI event: the event code and its parameters.
type EventHandler func(code byte, params []byte)

// Poster defers a callback to the run loop that owns the controller.
type Poster interface {
	Post(f func())
}

// LinkControl starts and answers link encryption on an LE connection.
type LinkControl interface {
	StartEncryption(handle uint16, ltk [16]byte, ediv uint16, rand uint64) error
	LongTermKeyReply(handle uint16, ltk [16]byte) error
	LongTermKeyNegativeReply(handle uint16) error
}

// CommandLink is a LinkControl that issues the LE encryption commands through a Controller.
type CommandLink struct {
	c Controller
}

func NewCommandLink(c Controller) *CommandLink {
	return &CommandLink{c: c}
}

func (l *CommandLink) StartEncryption(handle uint16, ltk [16]byte, ediv uint16, rand uint64) error {
	return l.c.Send(&LEStartEncryption{
		ConnectionHandle:     handle,
		RandomNumber:         rand,
		EncryptedDiversifier: ediv,
		LongTermKey:          ltk,
	})
}

func (l *CommandLink) LongTermKeyReply(handle uint16, ltk [16]byte) error {
	return l.c.Send(&LELongTermKeyRequestReply{
		ConnectionHandle: handle,
		LongTermKey:      ltk,
	})
}

func (l *CommandLink) LongTermKeyNegativeReply(handle uint16) error {
	return l.c.Send(&LELongTermKeyRequestNegativeReply{
		ConnectionHandle: handle,
	})
}
