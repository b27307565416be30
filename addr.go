package blesm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AddrType is the LE address type carried next to every device address.
type AddrType byte

const (
	AddrPublic AddrType = 0x00
	AddrRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrPublic:
		return "public"
	case AddrRandom:
		return "random"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Addr is an LE device address. MAC holds the octets in display order (most significant first).
type Addr struct {
	Type AddrType
	MAC  [6]byte
}

// ParseAddr parses "aa:bb:cc:dd:ee:ff" or "aabbccddeeff".
func ParseAddr(s string, t AddrType) (Addr, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Addr{}, errors.Wrapf(err, "invalid address %q", s)
	}
	if len(b) != 6 {
		return Addr{}, errors.Errorf("invalid address length %d", len(b))
	}

	a := Addr{Type: t}
	copy(a.MAC[:], b)
	return a, nil
}

// MustParseAddr is ParseAddr that panics on malformed input.
func MustParseAddr(s string, t AddrType) Addr {
	a, err := ParseAddr(s, t)
	if err != nil {
		panic(err)
	}
	return a
}

// AddrFromWire builds an address from the little-endian octets used on air.
func AddrFromWire(t AddrType, b [6]byte) Addr {
	a := Addr{Type: t}
	for i := range b {
		a.MAC[5-i] = b[i]
	}
	return a
}

// Wire returns the address octets in little-endian air order.
func (a Addr) Wire() [6]byte {
	var out [6]byte
	for i := range a.MAC {
		out[5-i] = a.MAC[i]
	}
	return out
}

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a.MAC[0], a.MAC[1], a.MAC[2], a.MAC[3], a.MAC[4], a.MAC[5])
}

// IsResolvablePrivate reports a random address whose two top bits are 0b01.
func (a Addr) IsResolvablePrivate() bool {
	return a.Type == AddrRandom && a.MAC[0]&0xc0 == 0x40
}

// IsZero reports the all-zero address.
func (a Addr) IsZero() bool {
	return a.MAC == [6]byte{}
}
