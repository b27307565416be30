package smp

import (
	"github.com/rigado/blesm/toolbox"
)

// LE Secure Connections. Nonces come from the controller; f4, f5, f6 and g2 run locally.

func scBegin(e *env, s *setup) (state, []action) {
	if e.role == Responder {
		return scState{s: s, step: scWaitPublicKey}, nil
	}

	kp, err := e.newKeyPair()
	if err != nil {
		return abort(e, scState{s: s}, ReasonUnspecified, true, err, false)
	}
	s.keys = kp
	return scState{s: s, step: scWaitPublicKey}, []action{actSend{encodePublicKey(kp.Public())}}
}

// startRound begins passkey round s.round, or the single exchange of the other methods.
func startRound(s *setup) (state, []action) {
	return scState{s: s, step: scRandom}, []action{actRandom{}}
}

func onSC(e *env, st scState, ev event) (state, []action, bool) {
	s := st.s

	switch ev := ev.(type) {
	case publicKeyPDU:
		if st.step != scWaitPublicKey {
			return nil, nil, false
		}
		return onPublicKey(e, st, ev)

	case evPasskey:
		if !s.assoc.inputs(e.role) || s.havePasskey {
			return st, nil, true
		}
		s.setPasskey(ev.passkey)
		switch {
		case st.step == scWaitPasskey:
			next, acts := startRound(s)
			return next, acts, true
		case st.step == scWaitConfirm && e.role == Responder && s.havePeerConfirm:
			next, acts := startRound(s)
			return next, acts, true
		}
		return st, nil, true

	case confirmPDU:
		if st.step != scWaitConfirm {
			return nil, nil, false
		}
		return onSCConfirm(e, st, ev)

	case randomPDU:
		if st.step != scWaitRandom {
			return nil, nil, false
		}
		return onSCRandom(e, st, ev)

	case evCrypto:
		if st.step != scRandom {
			return nil, nil, false
		}
		return onSCNonce(e, st, ev.out)
	}
	return nil, nil, false
}

func onPublicKey(e *env, st scState, p publicKeyPDU) (state, []action, bool) {
	s := st.s
	var acts []action

	if s.keys == nil {
		kp, err := e.newKeyPair()
		if err != nil {
			next, acts := abort(e, st, ReasonUnspecified, true, err, false)
			return next, acts, true
		}
		s.keys = kp
	}

	// a reflected key or a point off the curve leaks the private key
	if s.keys.SamePublic(p.key) || toolbox.ValidatePublicKey(p.key) != nil {
		next, acts := abort(e, st, ReasonDHKeyCheckFailed, true, nil, false)
		return next, acts, true
	}
	dh, err := s.keys.DHKey(p.key)
	if err != nil {
		next, acts := abort(e, st, ReasonDHKeyCheckFailed, true, nil, false)
		return next, acts, true
	}
	s.peerPublic = p.key
	s.dhkey = dh
	s.haveDHKey = true

	if e.role == Responder {
		acts = append(acts, actSend{encodePublicKey(s.keys.Public())})
	}

	switch {
	case s.method() != PasskeyEntry && e.role == Initiator:
		return scState{s: s, step: scWaitConfirm}, acts, true
	case s.method() != PasskeyEntry:
		next, more := startRound(s)
		return next, append(acts, more...), true
	case e.role == Responder:
		return scState{s: s, step: scWaitConfirm}, acts, true
	case !s.havePasskey:
		return scState{s: s, step: scWaitPasskey}, acts, true
	}
	next, more := startRound(s)
	return next, append(acts, more...), true
}

// onSCNonce handles a fresh local nonce.
func onSCNonce(e *env, st scState, nonce [16]byte) (state, []action, bool) {
	s := st.s
	s.localNonce = nonce

	if s.method() != PasskeyEntry && e.role == Initiator {
		// Cb is already known; reveal Na
		return scState{s: s, step: scWaitRandom}, []action{actSend{encode16(pairingRandom, s.localNonce)}}, true
	}

	s.localConfirm = toolbox.F4(s.localX(), s.peerX(), s.localNonce, s.z())
	send := actSend{encode16(pairingConfirm, s.localConfirm)}
	if e.role == Initiator {
		return scState{s: s, step: scWaitConfirm}, []action{send}, true
	}
	return scState{s: s, step: scWaitRandom}, []action{send}, true
}

func onSCConfirm(e *env, st scState, p confirmPDU) (state, []action, bool) {
	s := st.s

	if e.role == Initiator {
		s.peerConfirm = p.value
		s.havePeerConfirm = true
		if s.method() != PasskeyEntry {
			next, acts := startRound(s)
			return next, acts, true
		}
		if p.value == s.localConfirm {
			next, acts := abort(e, st, ReasonUnspecified, true, nil, false)
			return next, acts, true
		}
		return scState{s: s, step: scWaitRandom}, []action{actSend{encode16(pairingRandom, s.localNonce)}}, true
	}

	// responder, passkey entry: Cai may arrive before the user typed the passkey
	if s.method() != PasskeyEntry || s.havePeerConfirm {
		return nil, nil, false
	}
	s.peerConfirm = p.value
	s.havePeerConfirm = true
	if !s.havePasskey {
		return st, nil, true
	}
	next, acts := startRound(s)
	return next, acts, true
}

func onSCRandom(e *env, st scState, p randomPDU) (state, []action, bool) {
	s := st.s
	s.peerNonce = p.value

	// outside of passkey entry only the responder commits to its nonce
	if e.role == Initiator || s.method() == PasskeyEntry {
		if toolbox.F4(s.peerX(), s.localX(), s.peerNonce, s.z()) != s.peerConfirm {
			next, acts := abort(e, st, ReasonConfirmValueFailed, true, nil, false)
			return next, acts, true
		}
	}

	var acts []action
	if e.role == Responder {
		acts = append(acts, actSend{encode16(pairingRandom, s.localNonce)})
	}

	if s.method() == PasskeyEntry {
		s.round++
		s.havePeerConfirm = false
		if s.round < passkeyIterationCount {
			if e.role == Initiator {
				next, more := startRound(s)
				return next, append(acts, more...), true
			}
			return scState{s: s, step: scWaitConfirm}, acts, true
		}
	}

	if s.method() == NumericComparison {
		na, nb := s.nonces(e.role)
		pka, pkb := s.localX(), s.peerX()
		if e.role == Responder {
			pka, pkb = pkb, pka
		}
		v := toolbox.G2(pka, pkb, na, nb)
		acts = append(acts, actNotify{NumericComparisonRequest{connEvent: e.conn(), Value: v}})
	}

	next, more := authStage2(e, s)
	return next, append(acts, more...), true
}

// authStage2 derives MacKey and LTK, then runs the DHKey check.
func authStage2(e *env, s *setup) (state, []action) {
	na, nb := s.nonces(e.role)
	s.macKey, s.ltk = toolbox.F5(s.dhkey, na, nb, addr7(e.initiatorAddr()), addr7(e.responderAddr()))
	s.haveLTK = true
	s.dhkey = [32]byte{}
	s.haveDHKey = false

	if e.role == Initiator && !s.needUser() {
		return dhkeyState{s: s}, []action{actSend{encode16(pairingDHKeyCheck, localCheck(e, s))}}
	}
	return dhkeyState{s: s}, nil
}

// localCheck is Ea for the initiator and Eb for the responder.
func localCheck(e *env, s *setup) [16]byte {
	na, nb := s.nonces(e.role)
	ioA, ioB := s.ioCaps()
	a, b := addr7(e.initiatorAddr()), addr7(e.responderAddr())
	r := s.checkR()
	if e.role == Initiator {
		return toolbox.F6(s.macKey, na, nb, r, ioA, a, b)
	}
	return toolbox.F6(s.macKey, nb, na, r, ioB, b, a)
}

// expectedPeerCheck is the value the peer must have sent.
func expectedPeerCheck(e *env, s *setup) [16]byte {
	na, nb := s.nonces(e.role)
	ioA, ioB := s.ioCaps()
	a, b := addr7(e.initiatorAddr()), addr7(e.responderAddr())
	r := s.checkR()
	if e.role == Initiator {
		return toolbox.F6(s.macKey, nb, na, r, ioB, b, a)
	}
	return toolbox.F6(s.macKey, na, nb, r, ioA, a, b)
}

func onDHKeyCheck(e *env, st dhkeyState, ev event) (state, []action, bool) {
	s := st.s

	switch ev := ev.(type) {
	case evConfirm:
		if !s.needUser() {
			return st, nil, true
		}
		if !ev.ok {
			next, acts := abort(e, st, ReasonNumericComparisonFailed, true, nil, false)
			return next, acts, true
		}
		s.userConfirmed = true
		if e.role == Initiator {
			return st, []action{actSend{encode16(pairingDHKeyCheck, localCheck(e, s))}}, true
		}
		if s.havePeerCheck {
			return verifyPeerCheck(e, st)
		}
		return st, nil, true

	case dhkeyCheckPDU:
		if s.havePeerCheck || (e.role == Initiator && s.needUser()) {
			return nil, nil, false
		}
		s.peerCheck = ev.value
		s.havePeerCheck = true
		if s.needUser() {
			return st, nil, true
		}
		return verifyPeerCheck(e, st)
	}
	return nil, nil, false
}

func verifyPeerCheck(e *env, st dhkeyState) (state, []action, bool) {
	s := st.s
	if s.peerCheck != expectedPeerCheck(e, s) {
		next, acts := abort(e, st, ReasonDHKeyCheckFailed, true, nil, false)
		return next, acts, true
	}

	var acts []action
	if e.role == Responder {
		acts = append(acts, actSend{encode16(pairingDHKeyCheck, localCheck(e, s))})
	}
	s.macKey = [16]byte{}
	s.ltk = toolbox.TruncateKey(s.ltk, s.keySize)

	next, more, ok := sessionKeyReady(e, s)
	return next, append(acts, more...), ok
}
