package smp

import (
	"github.com/rigado/blesm/toolbox"
)

// onEvent is the transition function of a connection: it consumes one event and
// returns the next state plus the actions the Conn must carry out.
func onEvent(e *env, st state, ev event) (state, []action) {
	switch ev := ev.(type) {
	case evDisconnect:
		if inProgress(st) {
			return abort(e, st, ReasonUnspecified, false, ErrDisconnected, false)
		}
		return st, []action{actStopTimer{}, actCancelCrypto{}}

	case evTimeout:
		if !inProgress(st) {
			return st, nil
		}
		ns, acts := abort(e, st, ReasonUnspecified, false, ErrPairingTimedOut, false)
		a := ns.(abortedState)
		a.timedOut = true
		return a, acts

	case evEncryptionChanged:
		if _, ok := st.(encryptingState); !ok {
			return onEncryptionChangedIdle(e, st, ev)
		}
	}

	switch s := st.(type) {
	case abortedState:
		if s.timedOut {
			// nothing is accepted until the link is dropped
			return st, nil
		}
		return onIdle(e, st, ev)
	case idleState, bondedState:
		return onIdle(e, st, ev)
	}

	if next, acts, ok := onCommon(e, st, ev); ok {
		return next, acts
	}

	var (
		next state
		acts []action
		ok   bool
	)
	switch s := st.(type) {
	case featureState:
		next, acts, ok = onFeature(e, s, ev)
	case legacyState:
		next, acts, ok = onLegacy(e, s, ev)
	case scState:
		next, acts, ok = onSC(e, s, ev)
	case dhkeyState:
		next, acts, ok = onDHKeyCheck(e, s, ev)
	case keyReadyState:
		next, acts, ok = onKeyReady(e, s, ev)
	case encryptingState:
		next, acts, ok = onEncrypting(e, s, ev)
	case keyDistState:
		next, acts, ok = onKeyDist(e, s, ev)
	}
	if ok {
		return next, acts
	}
	return unexpected(e, st, ev)
}

// unexpected handles an event the current state has no transition for. PDUs abort the
// attempt; local events are ignored.
func unexpected(e *env, st state, ev event) (state, []action) {
	switch ev.(type) {
	case featuresPDU, confirmPDU, randomPDU, encInfoPDU, masterIdentPDU, identInfoPDU,
		identAddrPDU, signInfoPDU, publicKeyPDU, dhkeyCheckPDU:
		return abort(e, st, ReasonUnspecified, true, nil, false)
	case evCrypto:
		return abort(e, st, ReasonUnspecified, true, nil, false)
	}
	return st, nil
}

// onCommon handles the events every in-progress state treats alike.
func onCommon(e *env, st state, ev event) (state, []action, bool) {
	switch ev := ev.(type) {
	case failedPDU:
		next, acts := abort(e, st, ev.reason, false, nil, true)
		return next, acts, true

	case badPDU:
		next, acts := abort(e, st, ev.reason, true, nil, false)
		return next, acts, true

	case evResourceError:
		next, acts := abort(e, st, ReasonUnspecified, false, ev.err, false)
		return next, acts, true

	case evCrypto:
		if ev.err != nil {
			next, acts := abort(e, st, ReasonUnspecified, true, ev.err, false)
			return next, acts, true
		}

	case evPasskey:
		if !ev.ok {
			next, acts := abort(e, st, ReasonPasskeyEntryFailed, true, nil, false)
			return next, acts, true
		}

	case securityRequestPDU:
		// already pairing
		return st, nil, true

	case keypressPDU:
		var acts []action
		if h, ok := st.(secretHolder); ok && h.secrets().keypress {
			acts = append(acts, actNotify{Keypress{connEvent: e.conn(), Type: ev.typ}})
		}
		return st, acts, true

	case evLTKRequest:
		if l, ok := st.(legacyState); ok && l.step == lgSTK {
			// the initiator was faster; answer once the STK is known
			l.s.ltkRequest = &ev
			return st, nil, true
		}
		if _, ok := st.(keyReadyState); !ok {
			return st, []action{actReplyLTK{}}, true
		}

	case evStart, evRequestSecurity, evEncrypt, evBondStored:
		return st, nil, true
	}
	return nil, nil, false
}

func abort(e *env, st state, reason Reason, send bool, err error, remote bool) (state, []action) {
	if h, ok := st.(secretHolder); ok {
		h.secrets().wipe()
	}

	acts := []action{actCancelCrypto{}, actStopTimer{}}
	if send {
		acts = append(acts, actSend{encodeFailed(reason)})
	}
	if err == nil {
		err = &ProtocolError{Reason: reason, Remote: remote}
	}
	acts = append(acts, actNotify{PairingFailed{connEvent: e.conn(), Reason: reason, Remote: remote, Err: err}})
	return abortedState{reason: reason}, acts
}

// onIdle handles events outside of a pairing attempt.
func onIdle(e *env, st state, ev event) (state, []action) {
	switch ev := ev.(type) {
	case evStart:
		if e.role != Initiator {
			return st, nil
		}
		return startPairing(e)

	case featuresPDU:
		if ev.code != pairingRequest || e.role != Responder {
			return st, []action{actSend{encodeFailed(ReasonCommandNotSupported)}}
		}
		return onPairingRequest(e, ev)

	case securityRequestPDU:
		if e.role != Initiator {
			return st, []action{actSend{encodeFailed(ReasonCommandNotSupported)}}
		}
		return onSecurityRequest(e, st, ev)

	case evEncrypt:
		if e.role != Initiator {
			return st, nil
		}
		return onSecurityRequest(e, st, securityRequestPDU{})

	case evRequestSecurity:
		if e.role != Responder {
			return st, nil
		}
		return st, []action{actSend{[]byte{securityRequest, e.cfg.AuthReq}}}

	case evLTKRequest:
		if e.bond != nil {
			if ltk, ok := e.bond.ResponderKey(ev.ediv, ev.rand); ok {
				return st, []action{actReplyLTK{ltk: ltk, ok: true}}
			}
		}
		return st, []action{actReplyLTK{}}

	case evBondStored:
		b, ok := st.(bondedState)
		if !ok || !b.storing {
			return st, nil
		}
		if ev.err != nil {
			return abortedState{reason: ReasonUnspecified}, []action{actNotify{PairingFailed{
				connEvent: e.conn(),
				Reason:    ReasonUnspecified,
				Err:       ev.err,
			}}}
		}
		b.storing = false
		return b, []action{actNotify{b.result}}

	case badPDU:
		return st, []action{actSend{encodeFailed(ev.reason)}}

	case failedPDU, keypressPDU, evCrypto, evPasskey, evConfirm, evResourceError:
		return st, nil
	}

	if isPDU(ev) {
		return st, []action{actSend{encodeFailed(ReasonUnspecified)}}
	}
	return st, nil
}

func isPDU(ev event) bool {
	switch ev.(type) {
	case featuresPDU, confirmPDU, randomPDU, failedPDU, encInfoPDU, masterIdentPDU, identInfoPDU,
		identAddrPDU, signInfoPDU, securityRequestPDU, publicKeyPDU, dhkeyCheckPDU, keypressPDU, badPDU:
		return true
	}
	return false
}

func onEncryptionChangedIdle(e *env, st state, ev evEncryptionChanged) (state, []action) {
	acts := []action{actNotify{EncryptionChanged{connEvent: e.conn(), Enabled: ev.enabled, Status: ev.status}}}

	if idle, ok := st.(idleState); ok && idle.reencrypting {
		if ev.status != 0 && e.role == Initiator {
			// the peer lost the key: pair again
			next, more := startPairing(e)
			return next, append(acts, more...)
		}
		return idleState{}, acts
	}
	return st, acts
}

// onSecurityRequest is the initiator's answer to a responder asking for security.
func onSecurityRequest(e *env, st state, p securityRequestPDU) (state, []action) {
	if e.encrypted {
		return st, nil
	}

	if e.bond != nil {
		ltk, ediv, rand, ok := e.bond.EncryptionKey()
		mitm := p.authReq&AuthReqMitm != 0
		if ok && (!mitm || e.bond.Authenticated) {
			return idleState{reencrypting: true}, []action{actStartEncryption{ltk: ltk, ediv: ediv, rand: rand}}
		}
	}
	return startPairing(e)
}

func startPairing(e *env) (state, []action) {
	s := &setup{preq: e.cfg.request()}
	s.preqRaw = s.preq.marshal(pairingRequest)

	return featureState{s: s, step: stepWaitResponse}, []action{
		actStartTimer{},
		actNotify{PairingStarted{connEvent: e.conn(), Role: Initiator}},
		actSend{s.preqRaw[:]},
	}
}

// negotiate settles the attempt parameters once both feature sets are known.
func negotiate(e *env, s *setup) Reason {
	for _, c := range []SmpConfig{s.preq, s.pres} {
		if c.MaxKeySize > maxKeySize {
			return ReasonInvalidParameters
		}
		if c.MaxKeySize < defaultMinKeySize {
			return ReasonEncryptionKeySize
		}
	}

	s.keySize = int(s.preq.MaxKeySize)
	if int(s.pres.MaxKeySize) < s.keySize {
		s.keySize = int(s.pres.MaxKeySize)
	}
	if s.keySize < e.cfg.minKeySize {
		return ReasonEncryptionKeySize
	}

	s.sc = s.preq.sc() && s.pres.sc()
	if e.cfg.scOnly {
		if !s.sc {
			return ReasonAuthenticationRequirements
		}
		if s.keySize < maxKeySize {
			return ReasonEncryptionKeySize
		}
	}

	s.assoc = selectAssoc(s.preq, s.pres, s.sc)
	m := s.method()
	if m == OutOfBand && (s.sc || !e.cfg.haveOOB) {
		return ReasonOOBNotAvailable
	}
	if e.cfg.methods&m.Mask() == 0 {
		return ReasonAuthenticationRequirements
	}
	if e.cfg.mitm() && m == JustWorks {
		return ReasonAuthenticationRequirements
	}

	s.bonding = s.preq.bonding() && s.pres.bonding()
	s.keypress = s.preq.keypress() && s.pres.keypress()
	s.initKeys = s.preq.InitKeyDist & s.pres.InitKeyDist & keyDistMask
	s.respKeys = s.preq.RespKeyDist & s.pres.RespKeyDist & keyDistMask
	if s.sc {
		s.initKeys &^= KeyDistEncKey
		s.respKeys &^= KeyDistEncKey
	}

	if m == OutOfBand {
		s.tk = e.cfg.oob
		s.haveTK = true
	} else if m == JustWorks || m == NumericComparison {
		s.haveTK = true
	}
	if m == PasskeyEntry && s.assoc.displays(e.role) && e.cfg.fixedPasskey {
		s.setPasskey(e.cfg.passkey)
	}
	return 0
}

func onPairingRequest(e *env, p featuresPDU) (state, []action) {
	s := &setup{preq: p.cfg, preqRaw: p.raw}
	s.pres = e.cfg.response(p.cfg)
	s.presRaw = s.pres.marshal(pairingResponse)

	acts := []action{
		actStartTimer{},
		actNotify{PairingStarted{connEvent: e.conn(), Role: Responder}},
	}

	if reason := negotiate(e, s); reason != 0 {
		next, more := abort(e, featureState{s: s}, reason, true, nil, false)
		return next, append(acts, more...)
	}

	if s.method() == PasskeyEntry && s.assoc.displays(Responder) && !s.havePasskey {
		return featureState{s: s, step: stepRespPasskeyRandom}, append(acts, actRandom{})
	}

	next, more := afterFeatures(e, s)
	return next, append(acts, more...)
}

func onFeature(e *env, st featureState, ev event) (state, []action, bool) {
	s := st.s

	switch ev := ev.(type) {
	case featuresPDU:
		if st.step != stepWaitResponse || ev.code != pairingResponse {
			return nil, nil, false
		}
		s.pres = ev.cfg
		s.presRaw = ev.raw
		if reason := negotiate(e, s); reason != 0 {
			next, acts := abort(e, st, reason, true, nil, false)
			return next, acts, true
		}
		if s.method() == PasskeyEntry && s.assoc.displays(Initiator) && !s.havePasskey {
			return featureState{s: s, step: stepInitPasskeyRandom}, []action{actRandom{}}, true
		}
		next, acts := afterFeatures(e, s)
		return next, acts, true

	case evCrypto:
		if st.step == stepWaitResponse {
			return nil, nil, false
		}
		s.setPasskey(toolbox.PasskeyFromRandom(ev.out[:]))
		next, acts := afterFeatures(e, s)
		return next, acts, true
	}
	return nil, nil, false
}

// afterFeatures sends the Pairing Response when responding, prompts the user and
// enters the legacy or secure connections exchange.
func afterFeatures(e *env, s *setup) (state, []action) {
	var acts []action
	if e.role == Responder {
		acts = append(acts, actSend{s.presRaw[:]})
	}
	if s.method() == PasskeyEntry {
		if s.assoc.displays(e.role) {
			acts = append(acts, actNotify{PasskeyDisplay{connEvent: e.conn(), Passkey: s.passkey}})
		} else {
			acts = append(acts, actNotify{PasskeyInput{connEvent: e.conn()}})
		}
	}

	var (
		next state
		more []action
	)
	if s.sc {
		next, more = scBegin(e, s)
	} else {
		next, more = legacyBegin(e, s)
	}
	return next, append(acts, more...)
}
