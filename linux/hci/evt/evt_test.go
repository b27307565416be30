package evt

import (
	"testing"
)

func TestCommandComplete(t *testing.T) {
	e := CommandComplete([]byte{0x01, 0x17, 0x20, 0x00, 0xaa})
	if e.CommandOpcode() != 0x2017 {
		t.Fatalf("unexpected opcode %04x", e.CommandOpcode())
	}
	if e.NumHCICommandPackets() != 1 {
		t.Fatal("unexpected packet count")
	}
	rp := e.ReturnParameters()
	if len(rp) != 2 || rp[0] != 0x00 || rp[1] != 0xaa {
		t.Fatalf("unexpected return parameters %x", rp)
	}
}

func TestCommandCompleteNoParameters(t *testing.T) {
	e := CommandComplete([]byte{0x01, 0x00, 0x00})
	rp, err := e.ReturnParametersWErr()
	if err != nil || len(rp) != 0 {
		t.Fatalf("unexpected %x %v", rp, err)
	}
}

func TestLELongTermKeyRequest(t *testing.T) {
	e := LELongTermKeyRequest([]byte{0x05, 0x40, 0x00,
		1, 2, 3, 4, 5, 6, 7, 8,
		0x34, 0x12})
	if !e.Valid() {
		t.Fatal("complete event reported invalid")
	}
	if e.SubeventCode() != LELongTermKeyRequestSubCode {
		t.Fatalf("unexpected subevent 0x%02x", e.SubeventCode())
	}
	if LELongTermKeyRequest(nil).SubeventCode() != 0xff {
		t.Fatal("empty event reported a subevent")
	}
	if e.ConnectionHandle() != 0x0040 {
		t.Fatal("unexpected handle")
	}
	if e.RandomNumber() != 0x0807060504030201 {
		t.Fatalf("unexpected rand %x", e.RandomNumber())
	}
	if e.EncryptionDiversifier() != 0x1234 {
		t.Fatal("unexpected ediv")
	}
}

func TestShortEvent(t *testing.T) {
	e := EncryptionChange([]byte{0x00, 0x40})
	if e.Valid() {
		t.Fatal("short event reported valid")
	}
	if _, err := e.EncryptionEnabledWErr(); err == nil {
		t.Fatal("expected index error")
	}
	if e.ConnectionHandle() != 0xffff {
		t.Fatal("expected default handle")
	}
}
