package toolbox

import (
	"encoding/binary"
)

var (
	// f5 salt, little-endian
	f5Salt = [16]byte{0xbe, 0x83, 0x60, 0x5a, 0xdb, 0x0b, 0x37, 0x60,
		0x38, 0xa5, 0xf5, 0xaa, 0x91, 0x83, 0x88, 0x6c}
	// "btle", little-endian
	f5KeyID = [4]byte{0x65, 0x6c, 0x74, 0x62}
)

// F4 is the confirm value generation function: AES-CMAC_x(u || v || z).
func F4(u, v [32]byte, x [16]byte, z byte) [16]byte {
	m := make([]byte, 0, 65)
	m = append(m, z)
	m = append(m, v[:]...)
	m = append(m, u[:]...)

	return cmacLE(x, m)
}

// F5 derives MacKey and LTK from the DHKey w, the nonces n1 and n2, and the
// initiator/responder addresses a1 and a2 (address followed by type).
func F5(w [32]byte, n1, n2 [16]byte, a1, a2 [7]byte) (macKey, ltk [16]byte) {
	t := cmacLE(f5Salt, w[:])

	m := make([]byte, 0, 53)
	m = append(m, 0x00, 0x01) // length 256
	m = append(m, a2[:]...)
	m = append(m, a1[:]...)
	m = append(m, n2[:]...)
	m = append(m, n1[:]...)
	m = append(m, f5KeyID[:]...)
	m = append(m, 0x00)

	macKey = cmacLE(t, m)

	m[52] = 0x01
	ltk = cmacLE(t, m)

	return macKey, ltk
}

// F6 is the DHKey check function: AES-CMAC_w(n1 || n2 || r || ioCap || a1 || a2).
func F6(w, n1, n2, r [16]byte, ioCap [3]byte, a1, a2 [7]byte) [16]byte {
	m := make([]byte, 0, 65)
	m = append(m, a2[:]...)
	m = append(m, a1[:]...)
	m = append(m, ioCap[:]...)
	m = append(m, r[:]...)
	m = append(m, n2[:]...)
	m = append(m, n1[:]...)

	return cmacLE(w, m)
}

// G2 is the numeric comparison value generation function, reduced to six digits.
func G2(u, v [32]byte, x, y [16]byte) uint32 {
	m := make([]byte, 0, 80)
	m = append(m, y[:]...)
	m = append(m, v[:]...)
	m = append(m, u[:]...)

	h := cmacLE(x, m)
	return binary.LittleEndian.Uint32(h[:4]) % 1000000
}

// IOCap packs AuthReq, OOB flag and IO capability for f6.
func IOCap(authReq, oobFlag, ioCap byte) [3]byte {
	return [3]byte{ioCap, oobFlag, authReq}
}

// PasskeyR expands a passkey into the r value used by f6.
func PasskeyR(passkey uint32) [16]byte {
	return PasskeyTK(passkey)
}
