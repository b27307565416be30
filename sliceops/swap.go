package sliceops

// SwapBuf returns a reversed copy of in.
func SwapBuf(in []byte) []byte {
	a := make([]byte, 0, len(in))
	a = append(a, in...)
	for i := len(a)/2 - 1; i >= 0; i-- {
		opp := len(a) - 1 - i
		a[i], a[opp] = a[opp], a[i]
	}

	return a
}

// Swap16 reverses a 128-bit value.
func Swap16(in [16]byte) [16]byte {
	var out [16]byte
	for i := range in {
		out[15-i] = in[i]
	}
	return out
}

// Swap32 reverses a 256-bit value.
func Swap32(in [32]byte) [32]byte {
	var out [32]byte
	for i := range in {
		out[31-i] = in[i]
	}
	return out
}

// Zero clears b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
