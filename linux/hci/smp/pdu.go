package smp

import (
	"encoding/binary"

	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
)

// pdu is an L2CAP basic frame: length, channel id, payload.
type pdu []byte

func (p pdu) dlen() int       { return int(binary.LittleEndian.Uint16(p[0:2])) }
func (p pdu) cid() uint16     { return binary.LittleEndian.Uint16(p[2:4]) }
func (p pdu) payload() []byte { return p[4:] }

func (p pdu) valid() bool {
	return len(p) >= 4 && p.dlen() == len(p)-4
}

func frame(payload []byte) []byte {
	b := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint16(b[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(b[2:4], hci.CidSMP)
	copy(b[4:], payload)
	return b
}

type smpDispatcher struct {
	desc   string
	size   int // including the opcode
	decode func(b []byte) event
}

var dispatcher = map[byte]smpDispatcher{
	pairingRequest:          {"pairing request", 7, decodeFeatures},
	pairingResponse:         {"pairing response", 7, decodeFeatures},
	pairingConfirm:          {"pairing confirm", 17, decodeConfirm},
	pairingRandom:           {"pairing random", 17, decodeRandom},
	pairingFailed:           {"pairing failed", 2, decodeFailed},
	encryptionInformation:   {"encryption info", 17, decodeEncInfo},
	masterIdentification:    {"master id", 11, decodeMasterIdent},
	identityInformation:     {"id info", 17, decodeIdentInfo},
	identityAddrInformation: {"id addr info", 8, decodeIdentAddr},
	signingInformation:      {"signing info", 17, decodeSignInfo},
	securityRequest:         {"security req", 2, decodeSecurityRequest},
	pairingPublicKey:        {"pairing pub key", 65, decodePublicKey},
	pairingDHKeyCheck:       {"pairing dhkey check", 17, decodeDHKeyCheck},
	pairingKeypress:         {"pairing keypress", 2, decodeKeypress},
}

func describe(code byte) string {
	if d, ok := dispatcher[code]; ok {
		return d.desc
	}
	return "unknown"
}

type featuresPDU struct {
	code byte
	raw  [7]byte
	cfg  SmpConfig
}

type confirmPDU struct{ value [16]byte }
type randomPDU struct{ value [16]byte }
type failedPDU struct{ reason Reason }
type encInfoPDU struct{ ltk [16]byte }

type masterIdentPDU struct {
	ediv uint16
	rand uint64
}

type identInfoPDU struct{ irk [16]byte }
type identAddrPDU struct{ addr blesm.Addr }
type signInfoPDU struct{ csrk [16]byte }
type securityRequestPDU struct{ authReq byte }
type publicKeyPDU struct{ key [64]byte }
type dhkeyCheckPDU struct{ value [16]byte }
type keypressPDU struct{ typ byte }

// badPDU stands for a PDU that failed validation.
type badPDU struct {
	code   byte
	reason Reason
}

// decodePDU validates the opcode and length of an SMP payload before building the typed PDU.
func decodePDU(b []byte) event {
	if len(b) == 0 {
		return badPDU{reason: ReasonInvalidParameters}
	}
	d, ok := dispatcher[b[0]]
	if !ok {
		return badPDU{code: b[0], reason: ReasonCommandNotSupported}
	}
	if len(b) != d.size {
		return badPDU{code: b[0], reason: ReasonInvalidParameters}
	}
	return d.decode(b)
}

func to16(b []byte) [16]byte {
	var v [16]byte
	copy(v[:], b)
	return v
}

func decodeFeatures(b []byte) event {
	p := featuresPDU{code: b[0], cfg: unmarshalSmpConfig(b[1:])}
	copy(p.raw[:], b)
	return p
}

func decodeConfirm(b []byte) event { return confirmPDU{to16(b[1:])} }
func decodeRandom(b []byte) event  { return randomPDU{to16(b[1:])} }
func decodeFailed(b []byte) event  { return failedPDU{Reason(b[1])} }
func decodeEncInfo(b []byte) event { return encInfoPDU{to16(b[1:])} }

func decodeMasterIdent(b []byte) event {
	return masterIdentPDU{
		ediv: binary.LittleEndian.Uint16(b[1:3]),
		rand: binary.LittleEndian.Uint64(b[3:11]),
	}
}

func decodeIdentInfo(b []byte) event { return identInfoPDU{to16(b[1:])} }

func decodeIdentAddr(b []byte) event {
	if b[1] > byte(blesm.AddrRandom) {
		return badPDU{code: b[0], reason: ReasonInvalidParameters}
	}
	var w [6]byte
	copy(w[:], b[2:8])
	return identAddrPDU{blesm.AddrFromWire(blesm.AddrType(b[1]), w)}
}

func decodeSignInfo(b []byte) event        { return signInfoPDU{to16(b[1:])} }
func decodeSecurityRequest(b []byte) event { return securityRequestPDU{b[1]} }

func decodePublicKey(b []byte) event {
	var k [64]byte
	copy(k[:], b[1:])
	return publicKeyPDU{k}
}

func decodeDHKeyCheck(b []byte) event { return dhkeyCheckPDU{to16(b[1:])} }

func decodeKeypress(b []byte) event {
	if b[1] > KeypressEntryCompleted {
		return badPDU{code: b[0], reason: ReasonInvalidParameters}
	}
	return keypressPDU{b[1]}
}

func encode16(code byte, v [16]byte) []byte {
	return append([]byte{code}, v[:]...)
}

func encodeFailed(r Reason) []byte {
	return []byte{pairingFailed, byte(r)}
}

func encodeMasterIdent(ediv uint16, rand uint64) []byte {
	b := make([]byte, 11)
	b[0] = masterIdentification
	binary.LittleEndian.PutUint16(b[1:3], ediv)
	binary.LittleEndian.PutUint64(b[3:11], rand)
	return b
}

func encodeIdentAddr(a blesm.Addr) []byte {
	w := a.Wire()
	return append([]byte{identityAddrInformation, byte(a.Type)}, w[:]...)
}

func encodePublicKey(k [64]byte) []byte {
	return append([]byte{pairingPublicKey}, k[:]...)
}
