package hci

import (
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/toolbox"
)

// Key flags recording which parts of a BondInfo hold key material.
const (
	KeyLTK       = 0x01 // peer distributed LTK, EDIV and Rand
	KeyLocalLTK  = 0x02 // LTK this device distributed, used when it is the responder
	KeyIRK       = 0x04
	KeyCSRK      = 0x08
	KeyLocalCSRK = 0x10
)

// BondInfo is the bonding record stored for one peer.
type BondInfo struct {
	// Peer is the identity address when one was distributed, otherwise the connection address.
	Peer blesm.Addr

	LongTermKey [16]byte
	EDiv        uint16
	Rand        uint64

	LocalLongTermKey [16]byte
	LocalEDiv        uint16
	LocalRand        uint64

	IdentityResolvingKey [16]byte
	SignatureKey         [16]byte
	LocalSignatureKey    [16]byte

	KeySize       int
	Authenticated bool
	Legacy        bool
	Keys          byte

	RemoteSignCounter uint32
	LocalSignCounter  uint32
}

// Has reports whether every key in flags is present.
func (b *BondInfo) Has(flags byte) bool {
	return b.Keys&flags == flags
}

// EncryptionKey returns the key, EDIV and Rand used when this device starts encryption as initiator.
func (b *BondInfo) EncryptionKey() (ltk [16]byte, ediv uint16, rand uint64, ok bool) {
	if !b.Has(KeyLTK) {
		return ltk, 0, 0, false
	}
	return b.LongTermKey, b.EDiv, b.Rand, true
}

// ResponderKey returns the key matching an LE Long Term Key Request for ediv and rand.
func (b *BondInfo) ResponderKey(ediv uint16, rand uint64) ([16]byte, bool) {
	if !b.Has(KeyLocalLTK) || b.LocalEDiv != ediv || b.LocalRand != rand {
		return [16]byte{}, false
	}
	return b.LocalLongTermKey, true
}

// BondManager persists bonding records keyed by peer address and address type.
type BondManager interface {
	Find(addr blesm.Addr) (BondInfo, error)
	Save(BondInfo) error
	Exists(addr blesm.Addr) bool
	Delete(addr blesm.Addr) error
	All() ([]BondInfo, error)
}

// ResolveIdentity looks for a bond whose IRK resolves the resolvable private address addr.
func ResolveIdentity(bm BondManager, addr blesm.Addr) (BondInfo, bool) {
	if bm == nil || !addr.IsResolvablePrivate() {
		return BondInfo{}, false
	}
	bonds, err := bm.All()
	if err != nil {
		return BondInfo{}, false
	}
	for _, b := range bonds {
		if b.Has(KeyIRK) && toolbox.ResolvePrivateAddr(b.IdentityResolvingKey, addr.Wire()) {
			return b, true
		}
	}
	return BondInfo{}, false
}
