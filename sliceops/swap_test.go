package sliceops

import (
	"bytes"
	"testing"
)

func TestSwapBuf(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}
	out := SwapBuf(in)
	if !bytes.Equal(out, []byte{5, 4, 3, 2, 1}) {
		t.Fatalf("unexpected swap %v", out)
	}
	if in[0] != 1 {
		t.Fatal("input modified")
	}
}

func TestSwap16(t *testing.T) {
	var in [16]byte
	for i := range in {
		in[i] = byte(i)
	}
	out := Swap16(in)
	if out[0] != 15 || out[15] != 0 {
		t.Fatalf("unexpected swap %v", out)
	}
	if Swap16(out) != in {
		t.Fatal("double swap is not identity")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Fatalf("not zeroed: %v", b)
	}
}

func TestSwap32(t *testing.T) {
	var in [32]byte
	for i := range in {
		in[i] = byte(i)
	}
	out := Swap32(in)
	if out[0] != 31 || out[31] != 0 {
		t.Fatalf("unexpected swap %v", out)
	}
	if !bytes.Equal(out[:], SwapBuf(in[:])) {
		t.Fatal("Swap32 disagrees with SwapBuf")
	}
}
