package toolbox

import (
	"encoding/binary"
)

// C1P1 builds p1 = pres || preq || rat || iat.
func C1P1(preq, pres [7]byte, iat, rat byte) [16]byte {
	var p1 [16]byte
	p1[0] = iat & 0x01
	p1[1] = rat & 0x01
	copy(p1[2:9], preq[:])
	copy(p1[9:16], pres[:])
	return p1
}

// C1P2 builds p2 = padding || ia || ra.
func C1P2(ia, ra [6]byte) [16]byte {
	var p2 [16]byte
	copy(p2[0:6], ra[:])
	copy(p2[6:12], ia[:])
	return p2
}

// C1 is the legacy confirm value generation function:
// c1 = e(k, e(k, r XOR p1) XOR p2). preq and pres are the complete pairing PDUs, opcode included.
func C1(k, r [16]byte, preq, pres [7]byte, iat byte, ia [6]byte, rat byte, ra [6]byte) [16]byte {
	p1 := C1P1(preq, pres, iat, rat)
	p2 := C1P2(ia, ra)

	return E(k, Xor128(E(k, Xor128(r, p1)), p2))
}

// S1Plaintext builds r' from the lower 64 bits of r1 and r2.
func S1Plaintext(r1, r2 [16]byte) [16]byte {
	var r [16]byte
	copy(r[0:8], r2[0:8])
	copy(r[8:16], r1[0:8])
	return r
}

// S1 is the legacy STK generation function. r1 is the responder random, r2 the initiator random.
func S1(k, r1, r2 [16]byte) [16]byte {
	return E(k, S1Plaintext(r1, r2))
}

// D1Plaintext builds d' = padding || r || d.
func D1Plaintext(d, r uint16) [16]byte {
	var p [16]byte
	binary.LittleEndian.PutUint16(p[0:2], d)
	binary.LittleEndian.PutUint16(p[2:4], r)
	return p
}

// D1 is the diversifying function d1.
func D1(k [16]byte, d, r uint16) [16]byte {
	return E(k, D1Plaintext(d, r))
}

// DMPlaintext builds r' = padding || rand.
func DMPlaintext(rand [8]byte) [16]byte {
	var p [16]byte
	copy(p[0:8], rand[:])
	return p
}

// DMResult reduces the output of e to the 16 bit mask value.
func DMResult(ct [16]byte) uint16 {
	return binary.LittleEndian.Uint16(ct[0:2])
}

// DM is the mask generation function dm.
func DM(k [16]byte, rand [8]byte) uint16 {
	return DMResult(E(k, DMPlaintext(rand)))
}

// PasskeyTK expands a six digit passkey into a temporary key.
func PasskeyTK(passkey uint32) [16]byte {
	var tk [16]byte
	binary.LittleEndian.PutUint32(tk[0:4], passkey)
	return tk
}

// PasskeyFromRandom maps random octets onto 0..999999.
func PasskeyFromRandom(r []byte) uint32 {
	tk := binary.LittleEndian.Uint32(r[0:4]) & 0xfffff
	if tk >= 999999 {
		tk = tk - 999999
	}
	return tk
}

// TruncateKey keeps the size least significant octets of k.
func TruncateKey(k [16]byte, size int) [16]byte {
	if size < 0 {
		size = 0
	}
	for i := size; i < 16; i++ {
		k[i] = 0
	}
	return k
}
