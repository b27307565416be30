package hci

import (
	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci/evt"
)

// CryptoDone receives the 128-bit result of a crypto request.
type CryptoDone func(out [16]byte, err error)

type cryptoRequest struct {
	handle   uint16
	done     CryptoDone
	out      [16]byte
	parts    int
	canceled bool
}

type inflightCmd struct {
	opcode uint16
	req    *cryptoRequest
	part   int
}

// CryptoProxy serializes LE Encrypt and LE Rand round trips to the controller.
// Each connection handle owns a single pending slot. Completions are matched to
// the oldest in-flight command with the same opcode.
//
// A CryptoProxy is not safe for concurrent use; it belongs to the run loop goroutine.
type CryptoProxy struct {
	ctrl     Controller
	pending  map[uint16]*cryptoRequest
	inflight []inflightCmd
	logger   blesm.Logger
}

func NewCryptoProxy(c Controller) *CryptoProxy {
	return &CryptoProxy{
		ctrl:    c,
		pending: make(map[uint16]*cryptoRequest),
		logger:  blesm.ComponentLogger("hci"),
	}
}

// Pending reports whether handle has an outstanding request.
func (p *CryptoProxy) Pending(handle uint16) bool {
	_, ok := p.pending[handle]
	return ok
}

// RequestEncrypt asks the controller for e(key, plaintext). Both values are in LE order.
func (p *CryptoProxy) RequestEncrypt(handle uint16, key, plaintext [16]byte, done CryptoDone) error {
	r, err := p.reserve(handle, done, 1)
	if err != nil {
		return err
	}

	if err := p.send(r, &LEEncrypt{Key: key, PlaintextData: plaintext}, 0); err != nil {
		delete(p.pending, handle)
		return err
	}
	return nil
}

// RequestRandom asks the controller for 128 random bits, using two LE Rand commands.
func (p *CryptoProxy) RequestRandom(handle uint16, done CryptoDone) error {
	r, err := p.reserve(handle, done, 2)
	if err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := p.send(r, &LERand{}, i); err != nil {
			r.canceled = true
			delete(p.pending, handle)
			return err
		}
	}
	return nil
}

// Cancel releases the slot of handle. A completion that arrives later is dropped.
func (p *CryptoProxy) Cancel(handle uint16) bool {
	r, ok := p.pending[handle]
	if !ok {
		return false
	}
	r.canceled = true
	delete(p.pending, handle)
	return true
}

func (p *CryptoProxy) reserve(handle uint16, done CryptoDone, parts int) (*cryptoRequest, error) {
	if _, ok := p.pending[handle]; ok {
		return nil, errors.Wrapf(ErrRequestAlreadyPending, "handle 0x%04x", handle)
	}
	r := &cryptoRequest{handle: handle, done: done, parts: parts}
	p.pending[handle] = r
	return r, nil
}

func (p *CryptoProxy) send(r *cryptoRequest, c Command, part int) error {
	p.inflight = append(p.inflight, inflightCmd{opcode: uint16(c.OpCode()), req: r, part: part})
	if err := p.ctrl.Send(c); err != nil {
		p.inflight = p.inflight[:len(p.inflight)-1]
		return errors.Wrapf(err, "send 0x%04x", c.OpCode())
	}
	return nil
}

// HandleEvent consumes Command Complete events for LE Encrypt and LE Rand.
// It reports whether the event belonged to the proxy.
func (p *CryptoProxy) HandleEvent(code byte, params []byte) bool {
	if code != evt.CommandCompleteCode {
		return false
	}

	e := evt.CommandComplete(params)
	op, err := e.CommandOpcodeWErr()
	if err != nil || (op != OpLEEncrypt && op != OpLERand) {
		return false
	}

	idx := -1
	for i, c := range p.inflight {
		if c.opcode == op {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.logger.Warnf("unexpected command complete for 0x%04x", op)
		return true
	}

	c := p.inflight[idx]
	p.inflight = append(p.inflight[:idx], p.inflight[idx+1:]...)

	r := c.req
	if r.canceled {
		p.logger.Debugf("dropping completion 0x%04x for canceled request, handle 0x%04x", op, r.handle)
		return true
	}

	rp := e.ReturnParameters()
	switch op {
	case OpLEEncrypt:
		var v LEEncryptRP
		if err := p.unmarshal(rp, &v); err != nil {
			p.finish(r, err)
			return true
		}
		r.out = v.EncryptedData
		r.parts--

	case OpLERand:
		var v LERandRP
		if err := p.unmarshal(rp, &v); err != nil {
			p.finish(r, err)
			return true
		}
		copy(r.out[8*c.part:], v.RandomNumber[:])
		r.parts--
	}

	if r.parts == 0 {
		p.finish(r, nil)
	}
	return true
}

func (p *CryptoProxy) unmarshal(rp []byte, v CommandRP) error {
	if len(rp) > 0 && rp[0] != 0x00 {
		return ErrCommand(rp[0])
	}
	return v.Unmarshal(rp)
}

// finish frees the slot before calling back so the callback may issue the next request.
func (p *CryptoProxy) finish(r *cryptoRequest, err error) {
	r.canceled = true
	if p.pending[r.handle] == r {
		delete(p.pending, r.handle)
	}

	out := r.out
	r.out = [16]byte{}
	if err != nil {
		out = [16]byte{}
	}
	if r.done != nil {
		r.done(out, err)
	}
}
