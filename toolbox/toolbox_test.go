package toolbox

import (
	"encoding/hex"
	"testing"
)

func s2h(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal("s2h error!")
	}
	return b
}

func h16(t *testing.T, s string) [16]byte {
	t.Helper()
	var out [16]byte
	b := s2h(t, s)
	if len(b) != 16 {
		t.Fatalf("h16: length %d", len(b))
	}
	copy(out[:], b)
	return out
}

func h32(t *testing.T, s string) [32]byte {
	t.Helper()
	var out [32]byte
	b := s2h(t, s)
	if len(b) != 32 {
		t.Fatalf("h32: length %d", len(b))
	}
	copy(out[:], b)
	return out
}

func h7(t *testing.T, s string) [7]byte {
	t.Helper()
	var out [7]byte
	copy(out[:], s2h(t, s))
	return out
}

func h6(t *testing.T, s string) [6]byte {
	t.Helper()
	var out [6]byte
	copy(out[:], s2h(t, s))
	return out
}

const cmacKey = "2b7e151628aed2a6abf7158809cf4f3c"

func TestAesCMAC(t *testing.T) {
	key := h16(t, cmacKey)

	tests := []struct {
		msg string
		exp string
	}{
		{"", "bb1d6929e95937287fa37d129b756746"},
		{"6bc1bee22e409f96e93d7e117393172a", "070a16b46b4d4144f79bdd9dd04a287c"},
		{"6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411",
			"dfa66747de9ae63030ca32611497c827"},
		{"6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411e5fbc1191a0a52eff69f2445df4f9b17ad2b417be66c3710",
			"51f0bebf7e3b9d92fc49741779363cfe"},
	}

	for _, tt := range tests {
		mac := AESCMAC(key, s2h(t, tt.msg))
		if hex.EncodeToString(mac[:]) != tt.exp {
			t.Fatalf("cmac of %d byte message: got %x exp %s", len(tt.msg)/2, mac, tt.exp)
		}
	}
}

func TestSubkeys(t *testing.T) {
	key := h16(t, cmacKey)

	k0 := AES128(key, [16]byte{})
	if k0 != h16(t, "7df76b0c1ab899b33e42f047b91b546f") {
		t.Fatalf("unexpected K0 %x", k0)
	}

	k1, k2 := Subkeys(key)
	if k1 != h16(t, "fbeed618357133667c85e08f7236a8de") {
		t.Fatalf("unexpected K1 %x", k1)
	}
	if k2 != h16(t, "f7ddac306ae266ccf90bc11ee46d513b") {
		t.Fatalf("unexpected K2 %x", k2)
	}
}

func TestC1(t *testing.T) {
	k := [16]byte{}
	r := h16(t, "e02e70c64e2788630e6fad5621d58357")
	preq := h7(t, "01010000100707")
	pres := h7(t, "02030000080005")
	ia := h6(t, "a6a5a4a3a2a1")
	ra := h6(t, "b6b5b4b3b2b1")

	exp := h16(t, "863bf1bec54da7d2ea888987ef3f1e1e")

	c := C1(k, r, preq, pres, 0x01, ia, 0x00, ra)
	if c != exp {
		t.Fatalf("c1 mismatch\ngot %x\nexp %x", c, exp)
	}

	// the same value through two separate e() calls, the way the controller computes it
	p1 := C1P1(preq, pres, 0x01, 0x00)
	p2 := C1P2(ia, ra)
	encA := E(k, Xor128(r, p1))
	encB := E(k, Xor128(encA, p2))
	if encB != exp {
		t.Fatalf("split c1 mismatch %x", encB)
	}
}

func TestS1(t *testing.T) {
	k := [16]byte{}
	r1 := h16(t, "8877665544332211090a0b0c0d0e0f00")
	r2 := h16(t, "00ffeeddccbbaa990807060504030201")

	stk := S1(k, r1, r2)
	exp := h16(t, "62a06d79ae16425b9bf4b0e8f0e11f9a")
	if stk != exp {
		t.Fatalf("s1 mismatch\ngot %x\nexp %x", stk, exp)
	}
}

func TestAH(t *testing.T) {
	irk := h16(t, "9b7d390aa610103405adc857a33402ec")
	r := [3]byte{0x94, 0x81, 0x70}

	h := AH(irk, r)
	if h != [3]byte{0xaa, 0xfb, 0x0d} {
		t.Fatalf("ah mismatch %x", h)
	}

	addr := [6]byte{0xaa, 0xfb, 0x0d, 0x94, 0x81, 0x70}
	if !ResolvePrivateAddr(irk, addr) {
		t.Fatal("failed to resolve private address")
	}
	addr[0] ^= 0x01
	if ResolvePrivateAddr(irk, addr) {
		t.Fatal("resolved a modified address")
	}
}

var (
	testU  = "e69d350e480103ccdbfdf4ac1191f4efb9a5f9e9a7832c5e2cbe97f2d203b020"
	testV  = "fdc57ff449dd4f6bfb7c9df1c29acb592ae7d4eefbfc0a909abbf6323d8b1855"
	testX  = "abae2b71ecb2ffff3e7377d15484cbd5"
	testN2 = "cfc43dfff78365216e5fa725cce7e8a6"
	testW  = "98a6bf73f3348d86f166f8b4136b79999b7d390aa610103405adc857a33402ec"
	testA1 = "cebf3737125600"
	testA2 = "c1cf2d7013a700"
)

func TestF4(t *testing.T) {
	c := F4(h32(t, testU), h32(t, testV), h16(t, testX), 0x00)
	exp := h16(t, "2d8774a9bea1edf11cbda907f116c9f2")
	if c != exp {
		t.Fatalf("f4 mismatch\ngot %x\nexp %x", c, exp)
	}
}

func TestF5(t *testing.T) {
	macKey, ltk := F5(h32(t, testW), h16(t, testX), h16(t, testN2), h7(t, testA1), h7(t, testA2))

	if macKey != h16(t, "206e63ce206a3ffd024a08a176f16529") {
		t.Fatalf("incorrect f5 macKey: %x", macKey)
	}
	if ltk != h16(t, "380a7594b522059823cdd76911798669") {
		t.Fatalf("incorrect f5 ltk: %x", ltk)
	}
}

func TestF6(t *testing.T) {
	w := h16(t, "206e63ce206a3ffd024a08a176f16529")
	r := h16(t, "c80f2d0cd242da0854bb53b43b34a312")
	ioCap := [3]byte{0x02, 0x01, 0x01}

	res := F6(w, h16(t, testX), h16(t, testN2), r, ioCap, h7(t, testA1), h7(t, testA2))
	if res != h16(t, "618f95da090b6cd2c5e8d09c9873c4e3") {
		t.Fatalf("incorrect f6 output: %x", res)
	}
}

func TestG2(t *testing.T) {
	v := G2(h32(t, testU), h32(t, testV), h16(t, testX), h16(t, testN2))
	if v != uint32(0x2f9ed5ba%1000000) {
		t.Fatalf("incorrect g2 output: %d", v)
	}
}

func TestDeterministic(t *testing.T) {
	key := h16(t, cmacKey)
	msg := s2h(t, "6bc1bee22e409f96e93d7e117393172a")
	if AESCMAC(key, msg) != AESCMAC(key, msg) {
		t.Fatal("cmac is not deterministic")
	}

	u, v, x := h32(t, testU), h32(t, testV), h16(t, testX)
	if F4(u, v, x, 0x81) != F4(u, v, x, 0x81) {
		t.Fatal("f4 is not deterministic")
	}
	if F4(u, v, x, 0x80) == F4(u, v, x, 0x81) {
		t.Fatal("f4 ignores z")
	}
}

func TestKeyDerivation(t *testing.T) {
	er := h16(t, "0102030405060708090a0b0c0d0e0f10")

	if D1(er, 0x1234, 0) != E(er, D1Plaintext(0x1234, 0)) {
		t.Fatal("d1 does not match e(k, d')")
	}
	if D1(er, 0x1234, 0) == D1(er, 0x1234, 1) {
		t.Fatal("d1 ignores r")
	}

	rand := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	y := E(er, DMPlaintext(rand))
	if DM(er, rand) != uint16(y[0])|uint16(y[1])<<8 {
		t.Fatal("dm is not e(k, r') mod 2^16")
	}
}

func TestPasskey(t *testing.T) {
	tk := PasskeyTK(123456)
	if tk != h16(t, "40e20100000000000000000000000000") {
		t.Fatalf("unexpected tk %x", tk)
	}

	if p := PasskeyFromRandom([]byte{0xff, 0xff, 0xff, 0xff}); p != 0xfffff-999999 {
		t.Fatalf("unexpected passkey %d", p)
	}
	if p := PasskeyFromRandom([]byte{0x39, 0x30, 0x00, 0x00}); p != 12345 {
		t.Fatalf("unexpected passkey %d", p)
	}
}

func TestTruncateKey(t *testing.T) {
	k := h16(t, "0102030405060708090a0b0c0d0e0f10")
	tk := TruncateKey(k, 7)
	if tk != h16(t, "01020304050607000000000000000000") {
		t.Fatalf("unexpected truncation %x", tk)
	}
	if TruncateKey(k, 16) != k {
		t.Fatal("full size key modified")
	}
}
