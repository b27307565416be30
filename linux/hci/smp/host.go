package smp

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/linux/hci/bond"
	"github.com/rigado/blesm/linux/hci/evt"
	"github.com/rigado/blesm/linux/runloop"
	"github.com/rigado/blesm/toolbox"
)

// Scheduler is the run loop the Host lives on. *runloop.Loop implements it.
type Scheduler interface {
	Post(f func())
	AddTimer(d time.Duration, f func()) *runloop.Timer
}

// Transport carries SMP frames over the fixed L2CAP channel.
type Transport interface {
	Write(handle uint16, frame []byte) error
	CanSend(handle uint16) bool
}

// Host is the security manager of a device. It keeps one Conn per connection handle.
//
// Every method must be called from the run loop goroutine.
type Host struct {
	cfg   config
	sched Scheduler
	t     Transport
	link  hci.LinkControl
	proxy *hci.CryptoProxy
	bonds hci.BondManager

	conns        map[uint16]*Conn
	handler      EventHandler
	phaseHandler func(handle uint16, from, to Phase)

	irk, dhk   [16]byte
	newKeyPair func() (*toolbox.KeyPair, error)

	logger blesm.Logger
}

func NewHost(sched Scheduler, t Transport, link hci.LinkControl, proxy *hci.CryptoProxy, opts ...blesm.Option) (*Host, error) {
	h := &Host{
		cfg:        defaultConfig(),
		sched:      sched,
		t:          t,
		link:       link,
		proxy:      proxy,
		conns:      make(map[uint16]*Conn),
		newKeyPair: toolbox.GenerateKeyPair,
		logger:     blesm.ComponentLogger("smp"),
	}

	if _, err := rand.Read(h.cfg.ir[:]); err != nil {
		return nil, errors.Wrap(err, "identity root")
	}
	if _, err := rand.Read(h.cfg.er[:]); err != nil {
		return nil, errors.Wrap(err, "encryption root")
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	if h.bonds == nil {
		h.bonds = bond.NewMemoryStore(0)
	}
	h.deriveKeys()
	return h, nil
}

// deriveKeys computes IRK = d1(IR, 1, 0) and DHK = d1(IR, 3, 0).
func (h *Host) deriveKeys() {
	h.irk = toolbox.D1(h.cfg.ir, 1, 0)
	h.dhk = toolbox.D1(h.cfg.ir, 3, 0)
}

func (h *Host) SetEventHandler(f EventHandler) {
	h.handler = f
}

// SetPhaseHandler installs a trace of phase changes. It is called synchronously
// from event processing and must not call back into the Host.
func (h *Host) SetPhaseHandler(f func(handle uint16, from, to Phase)) {
	h.phaseHandler = f
}

// IdentityResolvingKey returns the local IRK distributed during key distribution.
func (h *Host) IdentityResolvingKey() [16]byte {
	return h.irk
}

func (h *Host) Bonds() hci.BondManager {
	return h.bonds
}

func (h *Host) Config() SmpConfig {
	return h.cfg.SmpConfig
}

func (h *Host) notify(ev Event) {
	h.sched.Post(func() {
		if h.handler != nil {
			h.handler(ev)
		}
	})
}

// Conn returns the security context of handle.
func (h *Host) Conn(handle uint16) (*Conn, bool) {
	c, ok := h.conns[handle]
	return c, ok
}

func (h *Host) conn(handle uint16) (*Conn, error) {
	c, ok := h.conns[handle]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConnection, "handle 0x%04x", handle)
	}
	return c, nil
}

// Connected creates the security context of a new link. A resolvable private peer
// address is matched against the stored IRKs.
func (h *Host) Connected(handle uint16, role Role, local, peer blesm.Addr) *Conn {
	if old, ok := h.conns[handle]; ok {
		old.close()
	}

	c := newConn(h, handle, role, local, peer)
	h.conns[handle] = c
	h.logger.Infof("connected 0x%04x as %v, peer %v (%v)", handle, role, peer, peer.Type)

	if bi, ok := hci.ResolveIdentity(h.bonds, peer); ok {
		c.env.bond = &bi
		h.notify(IdentityResolved{connEvent: c.env.conn(), Addr: peer, Identity: bi.Peer})
	} else if bi, err := h.bonds.Find(peer); err == nil {
		c.env.bond = &bi
	}
	return c
}

func (h *Host) Disconnected(handle uint16) {
	c, ok := h.conns[handle]
	if !ok {
		return
	}
	c.close()
	delete(h.conns, handle)
	h.logger.Infof("disconnected 0x%04x", handle)
}

// HandleL2CAP consumes an L2CAP frame received on the SMP channel.
func (h *Host) HandleL2CAP(handle uint16, b []byte) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}

	p := pdu(b)
	if !p.valid() {
		return errors.Errorf("invalid l2cap frame [%v]", hex.EncodeToString(b))
	}
	if p.cid() != hci.CidSMP {
		return errors.Errorf("unexpected cid 0x%04x", p.cid())
	}

	payload := p.payload()
	if len(payload) > 0 {
		c.logger.Debugf("recv %v", describe(payload[0]))
	}
	c.feed(decodePDU(payload))
	return nil
}

// CanSendNow is called when the transport can take frames again.
func (h *Host) CanSendNow(handle uint16) {
	if c, ok := h.conns[handle]; ok {
		c.flush()
	}
}

// HandleHCIEvent consumes controller events: crypto completions, Encryption Change,
// LE Long Term Key Request and Disconnection Complete.
func (h *Host) HandleHCIEvent(code byte, params []byte) {
	if h.proxy.HandleEvent(code, params) {
		return
	}

	switch code {
	case evt.EncryptionChangeCode:
		e := evt.EncryptionChange(params)
		if !e.Valid() {
			h.logger.Warnf("short encryption change [%v]", hex.EncodeToString(params))
			return
		}
		c, ok := h.conns[e.ConnectionHandle()]
		if !ok {
			return
		}
		c.env.encrypted = e.Status() == 0 && e.EncryptionEnabled() != 0
		c.feed(evEncryptionChanged{status: e.Status(), enabled: e.EncryptionEnabled() != 0})

	case evt.LEMetaCode:
		e := evt.LELongTermKeyRequest(params)
		if e.SubeventCode() != evt.LELongTermKeyRequestSubCode {
			return
		}
		if !e.Valid() {
			h.logger.Warnf("short ltk request [%v]", hex.EncodeToString(params))
			return
		}
		if c, ok := h.conns[e.ConnectionHandle()]; ok {
			c.feed(evLTKRequest{ediv: e.EncryptionDiversifier(), rand: e.RandomNumber()})
		}

	case evt.DisconnectionCompleteCode:
		e := evt.DisconnectionComplete(params)
		if e.Valid() && e.Status() == 0 {
			h.Disconnected(e.ConnectionHandle())
		}
	}
}

// Pair starts pairing as initiator.
func (h *Host) Pair(handle uint16) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if c.env.role != Initiator {
		return ErrWrongRole
	}
	if inProgress(c.st) {
		return ErrPairingInProgress
	}
	if a, ok := c.st.(abortedState); ok && a.timedOut {
		return ErrPairingTimedOut
	}
	c.feed(evStart{})
	return nil
}

// RequestSecurity sends a Security Request as responder.
func (h *Host) RequestSecurity(handle uint16) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if c.env.role != Responder {
		return ErrWrongRole
	}
	if inProgress(c.st) {
		return ErrPairingInProgress
	}
	c.feed(evRequestSecurity{})
	return nil
}

// StartEncryption encrypts the link with the bonded LTK, or pairs when there is none.
func (h *Host) StartEncryption(handle uint16) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if c.env.role != Initiator {
		return ErrWrongRole
	}
	if inProgress(c.st) {
		return ErrPairingInProgress
	}
	c.feed(evEncrypt{})
	return nil
}

// PasskeyReply answers a PasskeyInput event. ok false rejects the pairing.
func (h *Host) PasskeyReply(handle uint16, passkey uint32, ok bool) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if !c.waitingPasskey() {
		return ErrNotWaiting
	}
	if ok && passkey > maxPasskey {
		return errors.Errorf("invalid passkey %d", passkey)
	}
	c.feed(evPasskey{passkey: passkey, ok: ok})
	return nil
}

// ConfirmReply answers a NumericComparisonRequest event.
func (h *Host) ConfirmReply(handle uint16, ok bool) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if !c.waitingConfirm() {
		return ErrNotWaiting
	}
	c.feed(evConfirm{ok: ok})
	return nil
}

// SendKeypress notifies the peer of passkey entry progress.
func (h *Host) SendKeypress(handle uint16, typ byte) error {
	c, err := h.conn(handle)
	if err != nil {
		return err
	}
	if typ > KeypressEntryCompleted {
		return errors.Errorf("invalid keypress type %d", typ)
	}
	s := c.secrets()
	if s == nil || !s.keypress || !s.assoc.inputs(c.env.role) {
		return ErrNotWaiting
	}
	c.send([]byte{pairingKeypress, typ})
	return nil
}

// Phase returns the pairing phase of handle.
func (h *Host) Phase(handle uint16) (Phase, error) {
	c, err := h.conn(handle)
	if err != nil {
		return Idle, err
	}
	return c.Phase(), nil
}

// DeleteBond removes the bond of addr.
func (h *Host) DeleteBond(addr blesm.Addr) error {
	if !h.bonds.Exists(addr) {
		return errors.Wrapf(ErrNoBond, "%v", addr)
	}
	return h.bonds.Delete(addr)
}

func (h *Host) SetIOCapability(ioCap byte) error {
	if ioCap > IoCapKeyboardDisplay {
		return errors.Errorf("invalid io capability 0x%02x", ioCap)
	}
	h.cfg.IoCap = ioCap
	return nil
}

func (h *Host) SetAuthRequirements(authReq byte) error {
	h.cfg.AuthReq = authReq
	return nil
}

func (h *Host) SetOOBData(tk []byte) error {
	if len(tk) == 0 {
		h.cfg.oob = [16]byte{}
		h.cfg.haveOOB = false
		return nil
	}
	if len(tk) != 16 {
		return errors.Errorf("invalid oob data length %d", len(tk))
	}
	copy(h.cfg.oob[:], tk)
	h.cfg.haveOOB = true
	return nil
}

func (h *Host) SetMaxKeySize(n int) error {
	if n < defaultMinKeySize || n > maxKeySize {
		return errors.Errorf("invalid max key size %d", n)
	}
	h.cfg.MaxKeySize = byte(n)
	return nil
}

func (h *Host) SetMinKeySize(n int) error {
	if n < defaultMinKeySize || n > maxKeySize {
		return errors.Errorf("invalid min key size %d", n)
	}
	h.cfg.minKeySize = n
	return nil
}

func (h *Host) SetKeyDistribution(initKeys, respKeys byte) error {
	h.cfg.InitKeyDist = initKeys & keyDistMask
	h.cfg.RespKeyDist = respKeys & keyDistMask
	return nil
}

func (h *Host) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return errors.Errorf("invalid timeout %v", d)
	}
	h.cfg.timeout = d
	return nil
}

func (h *Host) SetSecureConnectionsOnly(enabled bool) error {
	h.cfg.scOnly = enabled
	return nil
}

func (h *Host) SetAcceptedMethods(mask byte) error {
	if mask&AllMethods == 0 {
		return errors.New("no pairing method accepted")
	}
	h.cfg.methods = mask & AllMethods
	return nil
}

func (h *Host) SetFixedPasskey(passkey uint32) error {
	if passkey > maxPasskey {
		return errors.Errorf("invalid passkey %d", passkey)
	}
	h.cfg.passkey = passkey
	h.cfg.fixedPasskey = true
	return nil
}

func (h *Host) SetIdentity(addr blesm.Addr, ir [16]byte) error {
	h.cfg.identity = addr
	h.cfg.ir = ir
	h.deriveKeys()
	return nil
}

func (h *Host) SetEncryptionRoot(er [16]byte) error {
	h.cfg.er = er
	return nil
}

func (h *Host) EnableSecurity(bm interface{}) error {
	b, ok := bm.(hci.BondManager)
	if !ok {
		return errors.Errorf("unsupported bond manager %T", bm)
	}
	h.bonds = b
	return nil
}
