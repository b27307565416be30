package smp

import (
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/toolbox"
)

// setup holds everything that lives for a single pairing attempt. It is owned by
// the state value of the attempt and wiped when the attempt ends.
type setup struct {
	preq, pres       SmpConfig
	preqRaw, presRaw [7]byte

	assoc    assoc
	sc       bool
	bonding  bool
	keypress bool
	keySize  int
	initKeys byte
	respKeys byte

	passkey     uint32
	havePasskey bool
	tk          [16]byte
	haveTK      bool

	localNonce      [16]byte
	peerNonce       [16]byte
	localConfirm    [16]byte
	peerConfirm     [16]byte
	havePeerConfirm bool
	scratch         [16]byte

	keys          *toolbox.KeyPair
	peerPublic    [64]byte
	dhkey         [32]byte
	haveDHKey     bool
	round         int
	macKey        [16]byte
	ltk           [16]byte
	haveLTK       bool
	peerCheck     [16]byte
	havePeerCheck bool
	userConfirmed bool
	ltkRequest    *evLTKRequest

	sendKeys byte
	sent     bool
	recv     []byte
	div      uint16
	haveDiv  bool
	ediv     uint16
	rand     uint64
	bond     hci.BondInfo
}

func (s *setup) wipe() {
	if s == nil {
		return
	}
	*s = setup{}
}

func (s *setup) method() Method {
	return s.assoc.method()
}

// needUser reports a numeric comparison the user has not confirmed yet.
func (s *setup) needUser() bool {
	return s.assoc == assocNumericComparison && !s.userConfirmed
}

func (s *setup) setPasskey(passkey uint32) {
	s.passkey = passkey
	s.havePasskey = true
	if !s.sc {
		s.tk = toolbox.PasskeyTK(passkey)
		s.haveTK = true
	}
}

// nonces returns Na and Nb, the initiator and responder nonces.
func (s *setup) nonces(r Role) (na, nb [16]byte) {
	if r == Initiator {
		return s.localNonce, s.peerNonce
	}
	return s.peerNonce, s.localNonce
}

// ioCaps returns IOcapA and IOcapB for f6.
func (s *setup) ioCaps() (a, b [3]byte) {
	a = toolbox.IOCap(s.preq.AuthReq, s.preq.OobFlag, s.preq.IoCap)
	b = toolbox.IOCap(s.pres.AuthReq, s.pres.OobFlag, s.pres.IoCap)
	return a, b
}

// checkR is the r input of f6: the passkey for passkey entry, zero otherwise.
func (s *setup) checkR() [16]byte {
	if s.method() == PasskeyEntry {
		return toolbox.PasskeyR(s.passkey)
	}
	return [16]byte{}
}

func (s *setup) localX() [32]byte {
	return s.keys.PublicX()
}

func (s *setup) peerX() [32]byte {
	var x [32]byte
	copy(x[:], s.peerPublic[:32])
	return x
}

// z is the f4 input of the current passkey round.
func (s *setup) z() byte {
	if s.method() != PasskeyEntry {
		return 0
	}
	return 0x80 | byte((s.passkey>>uint(s.round))&0x01)
}

func addr7(a blesm.Addr) [7]byte {
	var out [7]byte
	w := a.Wire()
	copy(out[:6], w[:])
	out[6] = byte(a.Type)
	return out
}

// initiatorAddr and responderAddr are the connection addresses of both roles.
func (e *env) initiatorAddr() blesm.Addr {
	if e.role == Initiator {
		return e.local
	}
	return e.peer
}

func (e *env) responderAddr() blesm.Addr {
	if e.role == Initiator {
		return e.peer
	}
	return e.local
}

type state interface {
	phase() Phase
}

// secretHolder is implemented by states that own a pairing attempt.
type secretHolder interface {
	secrets() *setup
}

type idleState struct {
	reencrypting bool
}

type featureStep int

const (
	stepWaitResponse featureStep = iota
	stepRespPasskeyRandom
	stepInitPasskeyRandom
)

type featureState struct {
	s    *setup
	step featureStep
}

type legacyStep int

const (
	lgWaitPasskey legacyStep = iota
	lgWaitConfirm
	lgRandom
	lgConfirmA
	lgConfirmB
	lgWaitRandom
	lgCheckA
	lgCheckB
	lgSTK
)

type legacyState struct {
	s    *setup
	step legacyStep
}

type scStep int

const (
	scWaitPublicKey scStep = iota
	scWaitPasskey
	scRandom
	scWaitConfirm
	scWaitRandom
)

type scState struct {
	s    *setup
	step scStep
}

type dhkeyState struct {
	s *setup
}

type keyReadyState struct {
	s *setup
}

type encryptingState struct {
	s *setup
}

type keyDistStep int

const (
	kdWait keyDistStep = iota
	kdRandom
	kdDM
	kdLTK
	kdCSRK
)

type keyDistState struct {
	s    *setup
	step keyDistStep
}

type bondedState struct {
	result  PairingComplete
	storing bool
}

type abortedState struct {
	reason   Reason
	timedOut bool
}

func (idleState) phase() Phase { return Idle }

func (st featureState) phase() Phase {
	switch st.step {
	case stepWaitResponse:
		return RequestSent
	case stepRespPasskeyRandom:
		return RequestReceived
	default:
		return FeatureExchanged
	}
}

func (st legacyState) phase() Phase {
	if st.step == lgSTK {
		return TKGeneration
	}
	return LegacyConfirmExchange
}

func (scState) phase() Phase         { return SCPublicKeyExchange }
func (dhkeyState) phase() Phase      { return DHKeyCheck }
func (keyReadyState) phase() Phase   { return ShortTermKeyReady }
func (encryptingState) phase() Phase { return EncryptionPending }
func (keyDistState) phase() Phase    { return KeyDistribution }
func (bondedState) phase() Phase     { return Bonded }
func (abortedState) phase() Phase    { return Aborted }

func (st featureState) secrets() *setup    { return st.s }
func (st legacyState) secrets() *setup     { return st.s }
func (st scState) secrets() *setup         { return st.s }
func (st dhkeyState) secrets() *setup      { return st.s }
func (st keyReadyState) secrets() *setup   { return st.s }
func (st encryptingState) secrets() *setup { return st.s }
func (st keyDistState) secrets() *setup    { return st.s }

func inProgress(st state) bool {
	switch st.phase() {
	case Idle, Bonded, Aborted:
		return false
	}
	return true
}
