package smp

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/toolbox"
)

func onEncrypting(e *env, st encryptingState, ev event) (state, []action, bool) {
	ch, ok := ev.(evEncryptionChanged)
	if !ok {
		return nil, nil, false
	}

	if ch.status != 0 || !ch.enabled {
		var err error
		if ch.status != 0 {
			err = errors.Wrap(hci.ErrCommand(ch.status), "encryption change")
		}
		next, acts := abort(e, st, ReasonUnspecified, true, err, false)
		return next, acts, true
	}

	next, acts := startKeyDist(e, st.s)
	notify := actNotify{EncryptionChanged{connEvent: e.conn(), Enabled: true}}
	return next, append([]action{notify}, acts...), true
}

// expectedPDUs lists the key distribution PDUs keys announces, in the order they are sent.
func expectedPDUs(keys byte, sc bool) []byte {
	var out []byte
	if keys&KeyDistEncKey != 0 && !sc {
		out = append(out, encryptionInformation, masterIdentification)
	}
	if keys&KeyDistIdKey != 0 {
		out = append(out, identityInformation, identityAddrInformation)
	}
	if keys&KeyDistSignKey != 0 {
		out = append(out, signingInformation)
	}
	return out
}

// startKeyDist runs once the link is encrypted. The responder distributes first; the
// initiator sends its keys after it has received all of the responder's.
func startKeyDist(e *env, s *setup) (state, []action) {
	s.bond = hci.BondInfo{
		Peer:          e.peer,
		KeySize:       s.keySize,
		Authenticated: s.method() != JustWorks,
		Legacy:        !s.sc,
	}
	if s.sc {
		s.bond.LongTermKey = s.ltk
		s.bond.LocalLongTermKey = s.ltk
		s.bond.Keys |= hci.KeyLTK | hci.KeyLocalLTK
	}
	s.ltk = [16]byte{}
	s.haveLTK = false

	send, recv := s.initKeys, s.respKeys
	if e.role == Responder {
		send, recv = recv, send
	}
	if s.sc {
		send &^= KeyDistEncKey
	}
	s.sendKeys = send
	s.recv = expectedPDUs(recv, s.sc)

	if e.role == Initiator && len(s.recv) > 0 {
		return keyDistState{s: s, step: kdWait}, nil
	}
	return sendNextKey(e, s)
}

// sendNextKey distributes the remaining local keys in order: EncKey, IdKey, Sign.
func sendNextKey(e *env, s *setup) (state, []action) {
	var acts []action
	for {
		switch {
		case s.sendKeys&KeyDistEncKey != 0:
			s.sendKeys &^= KeyDistEncKey
			return keyDistState{s: s, step: kdRandom}, append(acts, actRandom{})

		case s.sendKeys&KeyDistIdKey != 0:
			s.sendKeys &^= KeyDistIdKey
			acts = append(acts,
				actSend{encode16(identityInformation, e.irk)},
				actSend{encodeIdentAddr(e.identity)},
			)

		case s.sendKeys&KeyDistSignKey != 0:
			s.sendKeys &^= KeyDistSignKey
			if s.haveDiv {
				return keyDistState{s: s, step: kdCSRK}, append(acts, actEncrypt{e.cfg.er, toolbox.D1Plaintext(s.div, 1)})
			}
			return keyDistState{s: s, step: kdCSRK}, append(acts, actRandom{})

		default:
			s.sent = true
			if len(s.recv) == 0 {
				next, more := finishPairing(e, s)
				return next, append(acts, more...)
			}
			return keyDistState{s: s, step: kdWait}, acts
		}
	}
}

func onKeyDist(e *env, st keyDistState, ev event) (state, []action, bool) {
	s := st.s

	if c, ok := ev.(evCrypto); ok {
		return onKeyDistCrypto(e, st, c.out)
	}

	if !isPDU(ev) || len(s.recv) == 0 {
		return nil, nil, false
	}

	switch p := ev.(type) {
	case encInfoPDU:
		if s.recv[0] != encryptionInformation {
			return nil, nil, false
		}
		s.bond.LongTermKey = p.ltk
	case masterIdentPDU:
		if s.recv[0] != masterIdentification {
			return nil, nil, false
		}
		s.bond.EDiv = p.ediv
		s.bond.Rand = p.rand
		s.bond.Keys |= hci.KeyLTK
	case identInfoPDU:
		if s.recv[0] != identityInformation {
			return nil, nil, false
		}
		s.bond.IdentityResolvingKey = p.irk
		s.bond.Keys |= hci.KeyIRK
	case identAddrPDU:
		if s.recv[0] != identityAddrInformation {
			return nil, nil, false
		}
		s.bond.Peer = p.addr
	case signInfoPDU:
		if s.recv[0] != signingInformation {
			return nil, nil, false
		}
		s.bond.SignatureKey = p.csrk
		s.bond.Keys |= hci.KeyCSRK
	default:
		return nil, nil, false
	}
	s.recv = s.recv[1:]

	if len(s.recv) > 0 {
		return st, nil, true
	}
	if e.role == Initiator && !s.sent {
		next, acts := sendNextKey(e, s)
		return next, acts, true
	}
	if s.sent && st.step == kdWait {
		next, acts := finishPairing(e, s)
		return next, acts, true
	}
	return st, nil, true
}

// onKeyDistCrypto runs the legacy key generation:
//
//	Rand, DIV from the controller
//	EDIV = dm(DHK, Rand) ^ DIV
//	LTK  = d1(ER, DIV, 0)
//	CSRK = d1(ER, DIV, 1)
func onKeyDistCrypto(e *env, st keyDistState, out [16]byte) (state, []action, bool) {
	s := st.s

	switch st.step {
	case kdRandom:
		var r [8]byte
		copy(r[:], out[:8])
		s.rand = binary.LittleEndian.Uint64(r[:])
		s.div = binary.LittleEndian.Uint16(out[8:10])
		s.haveDiv = true
		return keyDistState{s: s, step: kdDM}, []action{actEncrypt{e.dhk, toolbox.DMPlaintext(r)}}, true

	case kdDM:
		s.ediv = toolbox.DMResult(out) ^ s.div
		return keyDistState{s: s, step: kdLTK}, []action{actEncrypt{e.cfg.er, toolbox.D1Plaintext(s.div, 0)}}, true

	case kdLTK:
		ltk := toolbox.TruncateKey(out, s.keySize)
		s.bond.LocalLongTermKey = ltk
		s.bond.LocalEDiv = s.ediv
		s.bond.LocalRand = s.rand
		s.bond.Keys |= hci.KeyLocalLTK

		next, acts := sendNextKey(e, s)
		return next, append([]action{
			actSend{encode16(encryptionInformation, ltk)},
			actSend{encodeMasterIdent(s.ediv, s.rand)},
		}, acts...), true

	case kdCSRK:
		s.bond.LocalSignatureKey = out
		s.bond.Keys |= hci.KeyLocalCSRK

		next, acts := sendNextKey(e, s)
		return next, append([]action{actSend{encode16(signingInformation, out)}}, acts...), true
	}
	return nil, nil, false
}

// finishPairing ends a successful attempt. The bond is handed to the store and the
// setup is wiped; the outcome is reported once the store answered.
func finishPairing(e *env, s *setup) (state, []action) {
	result := PairingComplete{
		connEvent:         e.conn(),
		Method:            s.method(),
		Authenticated:     s.method() != JustWorks,
		SecureConnections: s.sc,
		Bonded:            s.bonding,
		KeySize:           s.keySize,
		Peer:              s.bond.Peer,
	}
	bond := s.bond
	bonding := s.bonding
	s.wipe()

	acts := []action{actStopTimer{}}
	if bonding {
		return bondedState{result: result, storing: true}, append(acts, actStoreBond{bond})
	}
	return bondedState{result: result}, append(acts, actNotify{result})
}
