package toolbox

// AH is the random address hash function: e(irk, padding || r) mod 2^24.
func AH(irk [16]byte, r [3]byte) [3]byte {
	var p [16]byte
	copy(p[0:3], r[:])

	h := E(irk, p)
	return [3]byte{h[0], h[1], h[2]}
}

// ResolvePrivateAddr checks a resolvable private address, given in air order, against irk.
func ResolvePrivateAddr(irk [16]byte, addr [6]byte) bool {
	var hash, prand [3]byte
	copy(hash[:], addr[0:3])
	copy(prand[:], addr[3:6])

	return AH(irk, prand) == hash
}
