package smp

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/linux/runloop"
)

// Conn is the security context of one connection. Events are processed one at a
// time; events raised while an event is being handled are queued behind it.
type Conn struct {
	h     *Host
	env   env
	st    state
	queue []event
	busy  bool
	timer *runloop.Timer
	out   [][]byte

	logger blesm.Logger
}

func newConn(h *Host, handle uint16, role Role, local, peer blesm.Addr) *Conn {
	c := &Conn{
		h:  h,
		st: idleState{},
		env: env{
			handle:     handle,
			cfg:        &h.cfg,
			role:       role,
			local:      local,
			peer:       peer,
			identity:   h.cfg.identity,
			irk:        h.irk,
			dhk:        h.dhk,
			newKeyPair: h.newKeyPair,
		},
		logger: h.logger.ChildLogger(map[string]interface{}{"handle": handle}),
	}
	if c.env.identity.IsZero() {
		c.env.identity = local
	}
	return c
}

func (c *Conn) Handle() uint16 { return c.env.handle }
func (c *Conn) Role() Role     { return c.env.role }
func (c *Conn) Peer() blesm.Addr {
	return c.env.peer
}

func (c *Conn) Phase() Phase {
	return c.st.phase()
}

// Encrypted reports whether the link is currently encrypted.
func (c *Conn) Encrypted() bool {
	return c.env.encrypted
}

// Bond returns the bonding record known for the peer of this connection.
func (c *Conn) Bond() (hci.BondInfo, bool) {
	if c.env.bond == nil {
		return hci.BondInfo{}, false
	}
	return *c.env.bond, true
}

// TemporaryKey returns the legacy TK of the running attempt.
func (c *Conn) TemporaryKey() ([16]byte, bool) {
	s := c.secrets()
	if s == nil || !s.haveTK {
		return [16]byte{}, false
	}
	return s.tk, true
}

// DHKey returns the ECDH shared secret of the running attempt.
func (c *Conn) DHKey() ([32]byte, bool) {
	s := c.secrets()
	if s == nil || !s.haveDHKey {
		return [32]byte{}, false
	}
	return s.dhkey, true
}

// LongTermKey returns the STK or LTK of the running attempt before it is handed to the bond.
func (c *Conn) LongTermKey() ([16]byte, bool) {
	s := c.secrets()
	if s == nil || !s.haveLTK {
		return [16]byte{}, false
	}
	return s.ltk, true
}

func (c *Conn) secrets() *setup {
	if h, ok := c.st.(secretHolder); ok {
		return h.secrets()
	}
	return nil
}

func (c *Conn) waitingPasskey() bool {
	s := c.secrets()
	return s != nil && s.method() == PasskeyEntry && s.assoc.inputs(c.env.role) && !s.havePasskey
}

func (c *Conn) waitingConfirm() bool {
	s := c.secrets()
	return s != nil && s.needUser()
}

func (c *Conn) feed(ev event) {
	c.queue = append(c.queue, ev)
	if c.busy {
		return
	}

	c.busy = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]

		prev := c.st.phase()
		next, acts := onEvent(&c.env, c.st, ev)
		c.st = next
		if p := next.phase(); p != prev {
			c.logger.Debugf("%v -> %v", prev, p)
			if c.h.phaseHandler != nil {
				c.h.phaseHandler(c.env.handle, prev, p)
			}
		}
		for _, a := range acts {
			c.apply(a)
		}
	}
	c.queue = nil
	c.busy = false
}

func (c *Conn) apply(a action) {
	h := c.h
	handle := c.env.handle

	switch a := a.(type) {
	case actSend:
		c.send(a.pdu)

	case actEncrypt:
		err := h.proxy.RequestEncrypt(handle, a.key, a.plaintext, c.cryptoDone)
		if err != nil {
			c.feed(evResourceError{errors.Wrap(err, "encrypt")})
		}

	case actRandom:
		if err := h.proxy.RequestRandom(handle, c.cryptoDone); err != nil {
			c.feed(evResourceError{errors.Wrap(err, "random")})
		}

	case actStartEncryption:
		if err := h.link.StartEncryption(handle, a.ltk, a.ediv, a.rand); err != nil {
			c.feed(evResourceError{errors.Wrap(err, "start encryption")})
		}

	case actReplyLTK:
		var err error
		if a.ok {
			err = h.link.LongTermKeyReply(handle, a.ltk)
		} else {
			err = h.link.LongTermKeyNegativeReply(handle)
		}
		if err != nil {
			c.feed(evResourceError{errors.Wrap(err, "ltk reply")})
		}

	case actNotify:
		c.logger.Debugf("notify %T", a.ev)
		h.notify(a.ev)

	case actStoreBond:
		b := a.bond
		err := h.bonds.Save(b)
		if err == nil {
			c.env.bond = &b
			c.logger.Infof("bonded with %v", b.Peer)
		} else {
			err = errors.Wrap(err, "save bond")
		}
		c.feed(evBondStored{err})

	case actStartTimer:
		c.stopTimer()
		c.timer = h.sched.AddTimer(h.cfg.timeout, func() {
			c.timer = nil
			c.feed(evTimeout{})
		})
		c.logger.Debugf("pairing timer armed until %v", c.timer.Deadline().Format(time.RFC3339))

	case actStopTimer:
		c.stopTimer()

	case actCancelCrypto:
		h.proxy.Cancel(handle)
	}
}

func (c *Conn) cryptoDone(out [16]byte, err error) {
	c.feed(evCrypto{out: out, err: err})
}

func (c *Conn) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// send writes an SMP frame, or queues it until the transport is ready again.
func (c *Conn) send(payload []byte) {
	if code := payload[0]; code >= encryptionInformation && code <= signingInformation {
		c.logger.Debugf("send %v", describe(code))
	} else {
		c.logger.Debugf("send %v [%v]", describe(code), hex.EncodeToString(payload))
	}

	f := frame(payload)
	if len(c.out) > 0 || !c.h.t.CanSend(c.env.handle) {
		c.out = append(c.out, f)
		return
	}
	if err := c.h.t.Write(c.env.handle, f); err != nil {
		c.feed(evResourceError{errors.Wrap(err, "write")})
	}
}

// flush writes queued frames while the transport accepts them.
func (c *Conn) flush() {
	for len(c.out) > 0 && c.h.t.CanSend(c.env.handle) {
		f := c.out[0]
		c.out = c.out[1:]
		if err := c.h.t.Write(c.env.handle, f); err != nil {
			c.out = nil
			c.feed(evResourceError{errors.Wrap(err, "write")})
			return
		}
	}
}

// close releases the resources of the connection once it is gone.
func (c *Conn) close() {
	c.feed(evDisconnect{})
	c.stopTimer()
	c.out = nil
	c.h.proxy.Cancel(c.env.handle)
}
