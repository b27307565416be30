package smp

import (
	"bytes"
	"testing"

	"github.com/rigado/blesm"
	"github.com/rigado/blesm/toolbox"
)

func testEnv(role Role) *env {
	cfg := defaultConfig()
	return &env{
		handle:     0x40,
		cfg:        &cfg,
		role:       role,
		local:      blesm.MustParseAddr("11:22:33:44:55:66", blesm.AddrPublic),
		peer:       blesm.MustParseAddr("c1:c2:c3:c4:c5:c6", blesm.AddrRandom),
		newKeyPair: toolbox.GenerateKeyPair,
	}
}

func sent(acts []action) [][]byte {
	var out [][]byte
	for _, a := range acts {
		if s, ok := a.(actSend); ok {
			out = append(out, s.pdu)
		}
	}
	return out
}

func failure(acts []action) (PairingFailed, bool) {
	for _, a := range acts {
		if n, ok := a.(actNotify); ok {
			if f, ok := n.ev.(PairingFailed); ok {
				return f, true
			}
		}
	}
	return PairingFailed{}, false
}

func expectAbort(t *testing.T, st state, acts []action, reason Reason) {
	t.Helper()
	a, ok := st.(abortedState)
	if !ok {
		t.Fatalf("expected aborted state, got %v", st.phase())
	}
	if a.reason != reason {
		t.Fatalf("abort reason %v, expected %v", a.reason, reason)
	}
	f, ok := failure(acts)
	if !ok || f.Reason != reason {
		t.Fatalf("missing pairing failed notification for %v", reason)
	}
}

func TestSelectAssoc(t *testing.T) {
	mitm := AuthReqBond | AuthReqMitm
	cases := []struct {
		name      string
		initIO    byte
		respIO    byte
		initAuth  byte
		respAuth  byte
		initOOB   byte
		respOOB   byte
		sc        bool
		expected  assoc
		initInput bool
		respInput bool
	}{
		{"no mitm", IoCapKeyboardOnly, IoCapDisplayOnly, AuthReqBond, AuthReqBond, 0, 0, false, assocJustWorks, false, false},
		{"keyboard vs display", IoCapKeyboardOnly, IoCapDisplayOnly, mitm, 0, 0, 0, false, assocPasskeyInitInput, true, false},
		{"display vs keyboard", IoCapDisplayOnly, IoCapKeyboardOnly, 0, mitm, 0, 0, false, assocPasskeyRespInput, false, true},
		{"both keyboards", IoCapKeyboardOnly, IoCapKeyboardOnly, mitm, mitm, 0, 0, false, assocPasskeyBothInput, true, true},
		{"no io", IoCapNoInputNoOutput, IoCapKeyboardDisplay, mitm, mitm, 0, 0, false, assocJustWorks, false, false},
		{"legacy keyboard display", IoCapKeyboardDisplay, IoCapKeyboardDisplay, mitm, mitm, 0, 0, false, assocPasskeyRespInput, false, true},
		{"sc keyboard display", IoCapKeyboardDisplay, IoCapKeyboardDisplay, mitm, mitm, 0, 0, true, assocNumericComparison, false, false},
		{"sc yes no", IoCapDisplayYesNo, IoCapDisplayYesNo, mitm, mitm, 0, 0, true, assocNumericComparison, false, false},
		{"legacy yes no", IoCapDisplayYesNo, IoCapDisplayYesNo, mitm, mitm, 0, 0, false, assocJustWorks, false, false},
		{"legacy oob one side", IoCapNoInputNoOutput, IoCapNoInputNoOutput, 0, 0, oobDataPreset, 0, false, assocJustWorks, false, false},
		{"legacy oob", IoCapNoInputNoOutput, IoCapNoInputNoOutput, 0, 0, oobDataPreset, oobDataPreset, false, assocOOB, false, false},
		{"sc oob one side", IoCapNoInputNoOutput, IoCapNoInputNoOutput, 0, 0, 0, oobDataPreset, true, assocOOB, false, false},
		{"unknown io", 0x07, IoCapDisplayOnly, mitm, mitm, 0, 0, false, assocJustWorks, false, false},
	}

	for _, c := range cases {
		preq := SmpConfig{IoCap: c.initIO, AuthReq: c.initAuth, OobFlag: c.initOOB, MaxKeySize: 16}
		pres := SmpConfig{IoCap: c.respIO, AuthReq: c.respAuth, OobFlag: c.respOOB, MaxKeySize: 16}
		a := selectAssoc(preq, pres, c.sc)
		if a != c.expected {
			t.Fatalf("%s: got %v, expected %v", c.name, a, c.expected)
		}
		if a.inputs(Initiator) != c.initInput || a.inputs(Responder) != c.respInput {
			t.Fatalf("%s: unexpected input roles", c.name)
		}
	}
}

func TestNegotiate(t *testing.T) {
	legacy := SmpConfig{IoCap: IoCapNoInputNoOutput, AuthReq: AuthReqBond, MaxKeySize: 16, InitKeyDist: keyDistMask, RespKeyDist: keyDistMask}
	sc := legacy
	sc.AuthReq |= AuthReqSC

	cases := []struct {
		name     string
		preq     SmpConfig
		pres     SmpConfig
		cfg      func(c *config)
		expected Reason
	}{
		{"ok", legacy, legacy, nil, 0},
		{"peer key size too small", SmpConfig{MaxKeySize: 6}, legacy, nil, ReasonEncryptionKeySize},
		{"peer key size too large", legacy, SmpConfig{MaxKeySize: 17}, nil, ReasonInvalidParameters},
		{"below minimum", SmpConfig{AuthReq: AuthReqBond, MaxKeySize: 8}, legacy, func(c *config) { c.minKeySize = 10 }, ReasonEncryptionKeySize},
		{"sc only legacy", legacy, legacy, func(c *config) { c.scOnly = true }, ReasonAuthenticationRequirements},
		{"sc only short key", SmpConfig{AuthReq: AuthReqSC, MaxKeySize: 12}, sc, func(c *config) { c.scOnly = true }, ReasonEncryptionKeySize},
		{"sc oob", SmpConfig{AuthReq: AuthReqSC, OobFlag: oobDataPreset, MaxKeySize: 16}, sc, nil, ReasonOOBNotAvailable},
		{"legacy oob without data", SmpConfig{OobFlag: oobDataPreset, MaxKeySize: 16}, SmpConfig{OobFlag: oobDataPreset, MaxKeySize: 16}, nil, ReasonOOBNotAvailable},
		{"method not accepted", legacy, legacy, func(c *config) { c.methods = PasskeyEntry.Mask() }, ReasonAuthenticationRequirements},
		{"local mitm", legacy, legacy, func(c *config) { c.AuthReq |= AuthReqMitm }, ReasonAuthenticationRequirements},
	}

	for _, c := range cases {
		e := testEnv(Responder)
		if c.cfg != nil {
			c.cfg(e.cfg)
		}
		s := &setup{preq: c.preq, pres: c.pres}
		if r := negotiate(e, s); r != c.expected {
			t.Fatalf("%s: got %v, expected %v", c.name, r, c.expected)
		}
	}
}

func TestNegotiateKeys(t *testing.T) {
	e := testEnv(Initiator)
	s := &setup{
		preq: SmpConfig{AuthReq: AuthReqBond | AuthReqSC | AuthReqKeypress, MaxKeySize: 16, InitKeyDist: 0x07, RespKeyDist: 0x07},
		pres: SmpConfig{AuthReq: AuthReqBond | AuthReqSC, MaxKeySize: 12, InitKeyDist: 0x02, RespKeyDist: 0x0f},
	}
	if r := negotiate(e, s); r != 0 {
		t.Fatalf("unexpected reason %v", r)
	}
	if !s.sc || !s.bonding || s.keypress {
		t.Fatal("unexpected feature flags")
	}
	if s.keySize != 12 {
		t.Fatalf("key size %d", s.keySize)
	}
	// EncKey is not distributed with secure connections
	if s.initKeys != KeyDistIdKey || s.respKeys != KeyDistIdKey|KeyDistSignKey {
		t.Fatalf("key distribution 0x%02x 0x%02x", s.initKeys, s.respKeys)
	}
}

func TestDecodePDU(t *testing.T) {
	cases := []struct {
		name   string
		in     []byte
		reason Reason
	}{
		{"empty", []byte{}, ReasonInvalidParameters},
		{"unknown opcode", []byte{0x20, 0x00}, ReasonCommandNotSupported},
		{"short request", []byte{pairingRequest, 0x03, 0x00}, ReasonInvalidParameters},
		{"long confirm", append([]byte{pairingConfirm}, make([]byte, 17)...), ReasonInvalidParameters},
		{"short public key", append([]byte{pairingPublicKey}, make([]byte, 32)...), ReasonInvalidParameters},
		{"bad address type", []byte{identityAddrInformation, 0x02, 1, 2, 3, 4, 5, 6}, ReasonInvalidParameters},
		{"bad keypress", []byte{pairingKeypress, 0x05}, ReasonInvalidParameters},
	}
	for _, c := range cases {
		b, ok := decodePDU(c.in).(badPDU)
		if !ok {
			t.Fatalf("%s: expected a rejected pdu", c.name)
		}
		if b.reason != c.reason {
			t.Fatalf("%s: got %v, expected %v", c.name, b.reason, c.reason)
		}
	}

	ev := decodePDU([]byte{masterIdentification, 0x34, 0x12, 1, 0, 0, 0, 0, 0, 0, 0x80})
	mi, ok := ev.(masterIdentPDU)
	if !ok || mi.ediv != 0x1234 || mi.rand != 0x8000000000000001 {
		t.Fatalf("unexpected master identification %+v", ev)
	}

	a := blesm.MustParseAddr("c1:c2:c3:c4:c5:c6", blesm.AddrRandom)
	ia, ok := decodePDU(encodeIdentAddr(a)).(identAddrPDU)
	if !ok || ia.addr != a {
		t.Fatalf("identity address did not survive: %+v", ia)
	}
}

func TestOnPublicKeyMatchingLocalKey(t *testing.T) {
	e := testEnv(Responder)
	kp, err := toolbox.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	s := &setup{sc: true, keySize: 16, keys: kp}
	st := scState{s: s, step: scWaitPublicKey}

	next, acts := onEvent(e, st, publicKeyPDU{kp.Public()})
	expectAbort(t, next, acts, ReasonDHKeyCheckFailed)

	out := sent(acts)
	if len(out) != 1 || !bytes.Equal(out[0], []byte{pairingFailed, byte(ReasonDHKeyCheckFailed)}) {
		t.Fatalf("unexpected pdus %x", out)
	}
	if s.keys != nil || s.haveDHKey {
		t.Fatal("secrets not wiped")
	}
}

func TestOnPublicKeyOffCurve(t *testing.T) {
	e := testEnv(Responder)
	var k [64]byte
	for i := range k {
		k[i] = 0x01
	}
	next, acts := onEvent(e, scState{s: &setup{sc: true}, step: scWaitPublicKey}, publicKeyPDU{k})
	expectAbort(t, next, acts, ReasonDHKeyCheckFailed)
}

func TestOnPublicKeyResponder(t *testing.T) {
	e := testEnv(Responder)
	remote, err := toolbox.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	s := &setup{sc: true, keySize: 16}
	next, acts := onEvent(e, scState{s: s, step: scWaitPublicKey}, publicKeyPDU{remote.Public()})

	st, ok := next.(scState)
	if !ok || st.step != scRandom {
		t.Fatalf("unexpected state %v", next.phase())
	}
	out := sent(acts)
	if len(out) != 1 || out[0][0] != pairingPublicKey {
		t.Fatal("responder did not send its public key")
	}
	if _, ok := acts[len(acts)-1].(actRandom); !ok {
		t.Fatal("expected a nonce request")
	}

	local := s.keys.Public()
	remoteDH, err := remote.DHKey(local)
	if err != nil {
		t.Fatal(err)
	}
	if !s.haveDHKey || s.dhkey != remoteDH {
		t.Fatal("dhkey mismatch")
	}
}

func TestUnexpectedPDUAborts(t *testing.T) {
	e := testEnv(Initiator)
	s := &setup{tk: [16]byte{1}, haveTK: true}
	next, acts := onEvent(e, legacyState{s: s, step: lgWaitConfirm}, dhkeyCheckPDU{})
	expectAbort(t, next, acts, ReasonUnspecified)
	if s.haveTK || s.tk != ([16]byte{}) {
		t.Fatal("temporary key survived the abort")
	}
}

func TestRemoteFailure(t *testing.T) {
	e := testEnv(Initiator)
	next, acts := onEvent(e, featureState{s: &setup{}}, failedPDU{ReasonPairingNotSupported})
	expectAbort(t, next, acts, ReasonPairingNotSupported)
	if len(sent(acts)) != 0 {
		t.Fatal("pairing failed must not be answered")
	}
	f, _ := failure(acts)
	if !f.Remote {
		t.Fatal("expected a remote failure")
	}
	if pe, ok := f.Err.(*ProtocolError); !ok || !pe.Remote || pe.Reason != ReasonPairingNotSupported {
		t.Fatalf("unexpected error %v", f.Err)
	}
}

func TestTimeout(t *testing.T) {
	e := testEnv(Initiator)
	next, acts := onEvent(e, featureState{s: &setup{}}, evTimeout{})
	f, ok := failure(acts)
	if !ok || f.Err != ErrPairingTimedOut {
		t.Fatal("expected a timeout failure")
	}
	if len(sent(acts)) != 0 {
		t.Fatal("timeout must not send pairing failed")
	}

	next, acts = onEvent(e, next, featuresPDU{code: pairingResponse})
	if next.phase() != Aborted || len(acts) != 0 {
		t.Fatal("timed out connection accepted a pdu")
	}
	next, acts = onEvent(e, next, evStart{})
	if next.phase() != Aborted || len(acts) != 0 {
		t.Fatal("timed out connection started pairing")
	}
}

func TestIdleRejectsWrongRole(t *testing.T) {
	e := testEnv(Initiator)
	req := featuresPDU{code: pairingRequest, cfg: DefaultSmpConfig()}
	next, acts := onEvent(e, idleState{}, req)
	if next.phase() != Idle {
		t.Fatal("initiator accepted a pairing request")
	}
	out := sent(acts)
	if len(out) != 1 || !bytes.Equal(out[0], []byte{pairingFailed, byte(ReasonCommandNotSupported)}) {
		t.Fatalf("unexpected pdus %x", out)
	}

	e = testEnv(Responder)
	_, acts = onEvent(e, idleState{}, securityRequestPDU{AuthReqBond})
	out = sent(acts)
	if len(out) != 1 || out[0][1] != byte(ReasonCommandNotSupported) {
		t.Fatal("responder accepted a security request")
	}
}

func TestIdleLTKRequest(t *testing.T) {
	e := testEnv(Responder)
	_, acts := onEvent(e, idleState{}, evLTKRequest{ediv: 1, rand: 2})
	if r, ok := acts[0].(actReplyLTK); !ok || r.ok {
		t.Fatal("expected a negative reply without a bond")
	}
}

func TestKeyDistributionOrder(t *testing.T) {
	e := testEnv(Initiator)
	s := &setup{keySize: 16, bonding: true, initKeys: KeyDistIdKey, respKeys: KeyDistEncKey | KeyDistIdKey}
	st, acts := startKeyDist(e, s)
	if len(acts) != 0 {
		t.Fatal("initiator sent before receiving the responder keys")
	}

	kd := st.(keyDistState)
	if !bytes.Equal(kd.s.recv, []byte{encryptionInformation, masterIdentification, identityInformation, identityAddrInformation}) {
		t.Fatalf("unexpected receive order %x", kd.s.recv)
	}

	// out of order
	next, acts := onEvent(e, st, identInfoPDU{})
	expectAbort(t, next, acts, ReasonUnspecified)
}
