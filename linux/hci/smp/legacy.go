package smp

import (
	"github.com/rigado/blesm/toolbox"
)

// Legacy pairing. Every AES call of c1 and s1 is a controller round trip:
//
//	confirm = e(tk, e(tk, r ^ p1) ^ p2)
//	stk     = e(tk, r1' || r2')

func legacyBegin(e *env, s *setup) (state, []action) {
	if e.role == Responder {
		return legacyState{s: s, step: lgWaitConfirm}, nil
	}
	if !s.haveTK {
		return legacyState{s: s, step: lgWaitPasskey}, nil
	}
	return legacyState{s: s, step: lgRandom}, []action{actRandom{}}
}

func (e *env) c1Inputs(s *setup) (p1, p2 [16]byte) {
	ia, ra := e.initiatorAddr(), e.responderAddr()
	p1 = toolbox.C1P1(s.preqRaw, s.presRaw, byte(ia.Type), byte(ra.Type))
	p2 = toolbox.C1P2(ia.Wire(), ra.Wire())
	return p1, p2
}

func onLegacy(e *env, st legacyState, ev event) (state, []action, bool) {
	s := st.s
	p1, p2 := e.c1Inputs(s)

	switch ev := ev.(type) {
	case evPasskey:
		if !s.assoc.inputs(e.role) || s.havePasskey {
			return st, nil, true
		}
		s.setPasskey(ev.passkey)
		if st.step == lgWaitPasskey || (st.step == lgWaitConfirm && s.havePeerConfirm) {
			return legacyState{s: s, step: lgRandom}, []action{actRandom{}}, true
		}
		return st, nil, true

	case confirmPDU:
		if st.step != lgWaitConfirm && !(e.role == Responder && st.step == lgWaitPasskey) {
			return nil, nil, false
		}
		if e.role == Initiator {
			if ev.value == s.localConfirm {
				next, acts := abort(e, st, ReasonUnspecified, true, nil, false)
				return next, acts, true
			}
			s.peerConfirm = ev.value
			s.havePeerConfirm = true
			return legacyState{s: s, step: lgWaitRandom}, []action{actSend{encode16(pairingRandom, s.localNonce)}}, true
		}

		if s.havePeerConfirm {
			return nil, nil, false
		}
		s.peerConfirm = ev.value
		s.havePeerConfirm = true
		if !s.haveTK {
			return st, nil, true
		}
		return legacyState{s: s, step: lgRandom}, []action{actRandom{}}, true

	case randomPDU:
		if st.step != lgWaitRandom {
			return nil, nil, false
		}
		s.peerNonce = ev.value
		return legacyState{s: s, step: lgCheckA}, []action{actEncrypt{s.tk, toolbox.Xor128(s.peerNonce, p1)}}, true

	case evCrypto:
		return onLegacyCrypto(e, st, ev.out, p1, p2)
	}
	return nil, nil, false
}

func onLegacyCrypto(e *env, st legacyState, out, p1, p2 [16]byte) (state, []action, bool) {
	s := st.s

	switch st.step {
	case lgRandom:
		s.localNonce = out
		return legacyState{s: s, step: lgConfirmA}, []action{actEncrypt{s.tk, toolbox.Xor128(s.localNonce, p1)}}, true

	case lgConfirmA:
		s.scratch = out
		return legacyState{s: s, step: lgConfirmB}, []action{actEncrypt{s.tk, toolbox.Xor128(s.scratch, p2)}}, true

	case lgConfirmB:
		s.scratch = [16]byte{}
		s.localConfirm = out
		send := actSend{encode16(pairingConfirm, s.localConfirm)}
		if e.role == Initiator {
			return legacyState{s: s, step: lgWaitConfirm}, []action{send}, true
		}
		if s.peerConfirm == s.localConfirm {
			next, acts := abort(e, st, ReasonUnspecified, true, nil, false)
			return next, acts, true
		}
		return legacyState{s: s, step: lgWaitRandom}, []action{send}, true

	case lgCheckA:
		s.scratch = out
		return legacyState{s: s, step: lgCheckB}, []action{actEncrypt{s.tk, toolbox.Xor128(s.scratch, p2)}}, true

	case lgCheckB:
		s.scratch = [16]byte{}
		if out != s.peerConfirm {
			next, acts := abort(e, st, ReasonConfirmValueFailed, true, nil, false)
			return next, acts, true
		}

		var acts []action
		r1, r2 := s.peerNonce, s.localNonce
		if e.role == Responder {
			acts = append(acts, actSend{encode16(pairingRandom, s.localNonce)})
			r1, r2 = s.localNonce, s.peerNonce
		}
		acts = append(acts, actEncrypt{s.tk, toolbox.S1Plaintext(r1, r2)})
		return legacyState{s: s, step: lgSTK}, acts, true

	case lgSTK:
		s.ltk = toolbox.TruncateKey(out, s.keySize)
		s.haveLTK = true
		s.tk = [16]byte{}
		s.haveTK = false
		return sessionKeyReady(e, s)
	}
	return nil, nil, false
}

// sessionKeyReady starts encryption with the STK or LTK as initiator, or waits for the
// controller's LE Long Term Key Request as responder.
func sessionKeyReady(e *env, s *setup) (state, []action, bool) {
	if e.role == Initiator {
		return encryptingState{s: s}, []action{actStartEncryption{ltk: s.ltk}}, true
	}
	if req := s.ltkRequest; req != nil {
		s.ltkRequest = nil
		return onKeyReady(e, keyReadyState{s: s}, *req)
	}
	return keyReadyState{s: s}, nil, true
}

func onKeyReady(e *env, st keyReadyState, ev event) (state, []action, bool) {
	req, ok := ev.(evLTKRequest)
	if !ok {
		return nil, nil, false
	}
	if req.ediv != 0 || req.rand != 0 {
		return st, []action{actReplyLTK{}}, true
	}
	return encryptingState{s: st.s}, []action{actReplyLTK{ltk: st.s.ltk, ok: true}}, true
}
