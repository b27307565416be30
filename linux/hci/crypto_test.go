package hci

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/rigado/blesm/linux/hci/evt"
	"github.com/rigado/blesm/toolbox"
)

type queue struct {
	fns []func()
}

func (q *queue) Post(f func()) {
	q.fns = append(q.fns, f)
}

func (q *queue) run() int {
	n := 0
	for len(q.fns) > 0 {
		f := q.fns[0]
		q.fns = q.fns[1:]
		f()
		n++
	}
	return n
}

func s2h(t *testing.T, s string) [16]byte {
	var out [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		t.Fatalf("bad hex %q", s)
	}
	copy(out[:], b)
	return out
}

func newTestProxy() (*CryptoProxy, *SoftController, *queue) {
	q := &queue{}
	sc := NewSoftController(q)
	p := NewCryptoProxy(sc)
	sc.SetEventHandler(func(code byte, params []byte) {
		p.HandleEvent(code, params)
	})
	return p, sc, q
}

func TestLEEncryptMarshal(t *testing.T) {
	c := &LEEncrypt{}
	for i := range c.Key {
		c.Key[i] = byte(i)
		c.PlaintextData[i] = byte(0x10 + i)
	}
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b[:16], c.Key[:]) || !bytes.Equal(b[16:], c.PlaintextData[:]) {
		t.Fatalf("unexpected encoding %x", b)
	}

	if err := c.Marshal(make([]byte, 4)); err == nil {
		t.Fatal("expected short buffer error")
	}
}

func TestLERandRP(t *testing.T) {
	var rp LERandRP
	if err := rp.Unmarshal([]byte{0x00, 1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	if rp.RandomNumber != [8]byte{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Fatalf("unexpected random %x", rp.RandomNumber)
	}
	if err := rp.Unmarshal([]byte{0x00, 1}); err == nil {
		t.Fatal("expected length error")
	}
}

func TestProxyEncrypt(t *testing.T) {
	p, _, q := newTestProxy()
	key := s2h(t, "000102030405060708090a0b0c0d0e0f")
	pt := s2h(t, "00112233445566778899aabbccddeeff")

	var got [16]byte
	calls := 0
	err := p.RequestEncrypt(0x40, key, pt, func(out [16]byte, err error) {
		if err != nil {
			t.Fatal(err)
		}
		got = out
		calls++
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Pending(0x40) {
		t.Fatal("slot not held while request outstanding")
	}

	q.run()
	if calls != 1 {
		t.Fatalf("callback ran %d times", calls)
	}
	if got != toolbox.E(key, pt) {
		t.Fatalf("unexpected ciphertext %x", got)
	}
	if p.Pending(0x40) {
		t.Fatal("slot still held after completion")
	}
}

func TestProxyRandom(t *testing.T) {
	p, sc, q := newTestProxy()
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i)
	}
	sc.SetRandSource(bytes.NewReader(src))

	var got [16]byte
	if err := p.RequestRandom(0x40, func(out [16]byte, err error) {
		if err != nil {
			t.Fatal(err)
		}
		got = out
	}); err != nil {
		t.Fatal(err)
	}
	if sc.Sent() != 2 {
		t.Fatalf("expected two LE Rand commands, got %d", sc.Sent())
	}

	q.run()
	if !bytes.Equal(got[:], src) {
		t.Fatalf("unexpected random %x", got)
	}
}

func TestProxySecondRequestRejected(t *testing.T) {
	p, _, q := newTestProxy()

	first := 0
	if err := p.RequestRandom(0x40, func([16]byte, error) { first++ }); err != nil {
		t.Fatal(err)
	}

	err := p.RequestEncrypt(0x40, [16]byte{}, [16]byte{}, func([16]byte, error) {
		t.Fatal("rejected request must not complete")
	})
	if errors.Cause(err) != ErrRequestAlreadyPending {
		t.Fatalf("expected ErrRequestAlreadyPending, got %v", err)
	}

	// another connection is independent
	second := 0
	if err := p.RequestRandom(0x41, func([16]byte, error) { second++ }); err != nil {
		t.Fatal(err)
	}

	q.run()
	if first != 1 || second != 1 {
		t.Fatalf("unexpected completions %d %d", first, second)
	}
}

func TestProxyCancel(t *testing.T) {
	p, _, q := newTestProxy()

	if err := p.RequestEncrypt(0x40, [16]byte{}, [16]byte{}, func([16]byte, error) {
		t.Fatal("canceled request must not complete")
	}); err != nil {
		t.Fatal(err)
	}
	if !p.Cancel(0x40) {
		t.Fatal("cancel found no request")
	}
	if p.Cancel(0x40) {
		t.Fatal("second cancel found a request")
	}

	// the slot is free before the stale completion arrives
	var got [16]byte
	key := s2h(t, "0f0e0d0c0b0a09080706050403020100")
	if err := p.RequestEncrypt(0x40, key, [16]byte{}, func(out [16]byte, err error) {
		if err != nil {
			t.Fatal(err)
		}
		got = out
	}); err != nil {
		t.Fatal(err)
	}

	q.run()
	if got != toolbox.E(key, [16]byte{}) {
		t.Fatal("stale completion was delivered to the new request")
	}
}

func TestProxyCommandStatus(t *testing.T) {
	p, sc, q := newTestProxy()
	sc.FailNext(OpLEEncrypt, ErrHardware)

	var gotErr error
	if err := p.RequestEncrypt(0x40, [16]byte{}, [16]byte{}, func(out [16]byte, err error) {
		gotErr = err
		if out != ([16]byte{}) {
			t.Fatal("failed request returned data")
		}
	}); err != nil {
		t.Fatal(err)
	}

	q.run()
	if errors.Cause(gotErr) != ErrHardware {
		t.Fatalf("expected hardware failure, got %v", gotErr)
	}
	if p.Pending(0x40) {
		t.Fatal("slot held after failure")
	}
}

func TestProxyIgnoresOtherEvents(t *testing.T) {
	p, _, _ := newTestProxy()
	if p.HandleEvent(evt.EncryptionChangeCode, []byte{0, 0x40, 0, 1}) {
		t.Fatal("consumed encryption change")
	}
	// Command Complete for an unrelated command
	if p.HandleEvent(evt.CommandCompleteCode, []byte{1, 0x03, 0x0c, 0x00}) {
		t.Fatal("consumed reset completion")
	}
	// no request in flight
	if !p.HandleEvent(evt.CommandCompleteCode, []byte{1, 0x18, 0x20, 0x00, 1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatal("LE Rand completion not consumed")
	}
}

type recorder struct {
	cmds []Command
}

func (r *recorder) Send(c Command) error {
	r.cmds = append(r.cmds, c)
	return nil
}

func TestCommandLink(t *testing.T) {
	r := &recorder{}
	l := NewCommandLink(r)
	ltk := s2h(t, "00112233445566778899aabbccddeeff")

	if err := l.StartEncryption(0x40, ltk, 0x1234, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if err := l.LongTermKeyNegativeReply(0x41); err != nil {
		t.Fatal(err)
	}
	if len(r.cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(r.cmds))
	}

	c := r.cmds[0]
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		t.Fatal(err)
	}
	exp := "4000" + "0807060504030201" + "3412" + "00112233445566778899aabbccddeeff"
	if hex.EncodeToString(b) != exp {
		t.Fatalf("unexpected start encryption %x", b)
	}
	if r.cmds[1].OpCode() != OpLELongTermKeyRequestNegativeReply {
		t.Fatal("unexpected opcode")
	}
}
