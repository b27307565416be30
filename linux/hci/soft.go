package hci

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/rigado/blesm/linux/hci/evt"
	"github.com/rigado/blesm/toolbox"
)

// SoftController answers LE Encrypt and LE Rand in software. Results are posted to
// the run loop as Command Complete events, so callers observe the same suspension
// points as with a real controller.
type SoftController struct {
	post    Poster
	handler EventHandler
	rand    io.Reader
	fail    map[int]ErrCommand
	sent    int
}

func NewSoftController(p Poster) *SoftController {
	return &SoftController{
		post: p,
		rand: rand.Reader,
		fail: make(map[int]ErrCommand),
	}
}

// SetEventHandler sets the receiver of the generated events.
func (s *SoftController) SetEventHandler(h EventHandler) {
	s.handler = h
}

// SetRandSource replaces the entropy behind LE Rand.
func (s *SoftController) SetRandSource(r io.Reader) {
	s.rand = r
}

// FailNext makes the next command with opcode complete with status.
func (s *SoftController) FailNext(opcode int, status ErrCommand) {
	s.fail[opcode] = status
}

// Sent returns the number of commands accepted so far.
func (s *SoftController) Sent() int {
	return s.sent
}

func (s *SoftController) Send(c Command) error {
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		return errors.Wrap(err, "marshal")
	}

	op := c.OpCode()
	rp := []byte{0x00}
	if st, ok := s.fail[op]; ok {
		delete(s.fail, op)
		rp[0] = byte(st)
	} else {
		switch op {
		case OpLEEncrypt:
			var key, pt [16]byte
			copy(key[:], b[:16])
			copy(pt[:], b[16:32])
			ct := toolbox.E(key, pt)
			rp = append(rp, ct[:]...)

		case OpLERand:
			r := make([]byte, 8)
			if _, err := io.ReadFull(s.rand, r); err != nil {
				return errors.Wrap(err, "random source")
			}
			rp = append(rp, r...)

		default:
			rp[0] = byte(ErrUnknownCommand)
		}
	}
	s.sent++

	params := make([]byte, 3, 3+len(rp))
	params[0] = 1
	binary.LittleEndian.PutUint16(params[1:], uint16(op))
	params = append(params, rp...)

	s.post.Post(func() {
		if s.handler != nil {
			s.handler(evt.CommandCompleteCode, params)
		}
	})
	return nil
}

// SoftLink joins two hosts in one process: SMP frames written on one end are delivered
// to the other, and link encryption is emulated with the LE encryption events.
type SoftLink struct {
	post Poster
	ends [2]*SoftLinkEnd
}

// SoftLinkEnd is one side of a SoftLink. It implements LinkControl and an L2CAP writer.
type SoftLinkEnd struct {
	link    *SoftLink
	idx     int
	handle  uint16
	events  EventHandler
	data    func(handle uint16, frame []byte)
	blocked bool

	starting bool
	startLTK [16]byte
}

func NewSoftLink(p Poster, centralHandle, peripheralHandle uint16) *SoftLink {
	l := &SoftLink{post: p}
	l.ends[0] = &SoftLinkEnd{link: l, idx: 0, handle: centralHandle}
	l.ends[1] = &SoftLinkEnd{link: l, idx: 1, handle: peripheralHandle}
	return l
}

func (l *SoftLink) Central() *SoftLinkEnd    { return l.ends[0] }
func (l *SoftLink) Peripheral() *SoftLinkEnd { return l.ends[1] }

// Disconnect reports Disconnection Complete on both ends.
func (l *SoftLink) Disconnect(reason ErrCommand) {
	for _, e := range l.ends {
		e.emit(evt.DisconnectionCompleteCode, []byte{0x00, byte(e.handle), byte(e.handle >> 8), byte(reason)})
	}
}

func (e *SoftLinkEnd) peer() *SoftLinkEnd {
	return e.link.ends[1-e.idx]
}

func (e *SoftLinkEnd) Handle() uint16 {
	return e.handle
}

// SetHandlers sets the receivers of HCI events and SMP frames for this end.
func (e *SoftLinkEnd) SetHandlers(events EventHandler, data func(handle uint16, frame []byte)) {
	e.events = events
	e.data = data
}

// SetBlocked makes CanSend report false, emulating a full transmit queue.
func (e *SoftLinkEnd) SetBlocked(b bool) {
	e.blocked = b
}

func (e *SoftLinkEnd) CanSend(handle uint16) bool {
	return handle == e.handle && !e.blocked
}

func (e *SoftLinkEnd) Write(handle uint16, frame []byte) error {
	if handle != e.handle {
		return errors.Wrapf(ErrUnknownConnection, "handle 0x%04x", handle)
	}
	p := e.peer()
	b := append([]byte(nil), frame...)
	e.link.post.Post(func() {
		if p.data != nil {
			p.data(p.handle, b)
		}
	})
	return nil
}

func (e *SoftLinkEnd) StartEncryption(handle uint16, ltk [16]byte, ediv uint16, rand uint64) error {
	if handle != e.handle {
		return errors.Wrapf(ErrUnknownConnection, "handle 0x%04x", handle)
	}
	e.starting = true
	e.startLTK = ltk

	p := e.peer()
	b := make([]byte, 13)
	b[0] = evt.LELongTermKeyRequestSubCode
	binary.LittleEndian.PutUint16(b[1:], p.handle)
	binary.LittleEndian.PutUint64(b[3:], rand)
	binary.LittleEndian.PutUint16(b[11:], ediv)
	p.emit(evt.LEMetaCode, b)
	return nil
}

func (e *SoftLinkEnd) LongTermKeyReply(handle uint16, ltk [16]byte) error {
	if handle != e.handle {
		return errors.Wrapf(ErrUnknownConnection, "handle 0x%04x", handle)
	}
	p := e.peer()
	if !p.starting {
		return ErrCommandDisallowed
	}
	p.starting = false

	status := byte(0x00)
	enabled := byte(0x01)
	if ltk != p.startLTK {
		status, enabled = byte(ErrMICFailure), 0x00
	}
	p.startLTK = [16]byte{}

	for _, end := range e.link.ends {
		end.emit(evt.EncryptionChangeCode, []byte{status, byte(end.handle), byte(end.handle >> 8), enabled})
	}
	return nil
}

func (e *SoftLinkEnd) LongTermKeyNegativeReply(handle uint16) error {
	if handle != e.handle {
		return errors.Wrapf(ErrUnknownConnection, "handle 0x%04x", handle)
	}
	p := e.peer()
	if !p.starting {
		return ErrCommandDisallowed
	}
	p.starting = false
	p.startLTK = [16]byte{}
	p.emit(evt.EncryptionChangeCode, []byte{byte(ErrPinMissing), byte(p.handle), byte(p.handle >> 8), 0x00})
	return nil
}

func (e *SoftLinkEnd) emit(code byte, params []byte) {
	e.link.post.Post(func() {
		if e.events != nil {
			e.events(code, params)
		}
	})
}
