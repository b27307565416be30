package bond

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
)

type bondFile struct {
	Bonds []remoteKeyInfo `json:"bonds"`
}

type remoteKeyInfo struct {
	Address               string `json:"address"`
	AddressType           string `json:"addressType"`
	LongTermKey           string `json:"longTermKey,omitempty"`
	EncryptionDiversifier string `json:"encryptionDiversifier,omitempty"`
	RandomValue           string `json:"randomValue,omitempty"`
	LocalLongTermKey      string `json:"localLongTermKey,omitempty"`
	LocalDiversifier      string `json:"localEncryptionDiversifier,omitempty"`
	LocalRandomValue      string `json:"localRandomValue,omitempty"`
	IdentityResolvingKey  string `json:"identityResolvingKey,omitempty"`
	SignatureKey          string `json:"signatureKey,omitempty"`
	LocalSignatureKey     string `json:"localSignatureKey,omitempty"`
	KeySize               int    `json:"keySize"`
	Authenticated         bool   `json:"authenticated"`
	Legacy                bool   `json:"legacy"`
	RemoteSignCounter     uint32 `json:"remoteSignCounter"`
	LocalSignCounter      uint32 `json:"localSignCounter"`
}

func addrKey(a blesm.Addr) string {
	return fmt.Sprintf("%s/%s", a.String(), a.Type)
}

func encodeKey(k [16]byte, present bool) string {
	if !present {
		return ""
	}
	return hex.EncodeToString(k[:])
}

func decodeKey(s string, name string) ([16]byte, bool, error) {
	var k [16]byte
	if s == "" {
		return k, false, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return k, false, errors.Errorf("invalid %s in bond file", name)
	}
	copy(k[:], b)
	return k, true, nil
}

func encodeIdent(ediv uint16, rand uint64) (string, string) {
	e := make([]byte, 2)
	binary.LittleEndian.PutUint16(e, ediv)
	r := make([]byte, 8)
	binary.LittleEndian.PutUint64(r, rand)
	return hex.EncodeToString(e), hex.EncodeToString(r)
}

func decodeIdent(ediv, rand string) (uint16, uint64, error) {
	e, err := hex.DecodeString(ediv)
	if err != nil || len(e) != 2 {
		return 0, 0, errors.New("invalid ediv in bond file")
	}
	r, err := hex.DecodeString(rand)
	if err != nil || len(r) != 8 {
		return 0, 0, errors.New("invalid random value in bond file")
	}
	return binary.LittleEndian.Uint16(e), binary.LittleEndian.Uint64(r), nil
}

func createRemoteKeyInfo(b hci.BondInfo) remoteKeyInfo {
	rki := remoteKeyInfo{
		Address:           b.Peer.String(),
		AddressType:       b.Peer.Type.String(),
		KeySize:           b.KeySize,
		Authenticated:     b.Authenticated,
		Legacy:            b.Legacy,
		RemoteSignCounter: b.RemoteSignCounter,
		LocalSignCounter:  b.LocalSignCounter,
	}

	if b.Has(hci.KeyLTK) {
		rki.LongTermKey = encodeKey(b.LongTermKey, true)
		rki.EncryptionDiversifier, rki.RandomValue = encodeIdent(b.EDiv, b.Rand)
	}
	if b.Has(hci.KeyLocalLTK) {
		rki.LocalLongTermKey = encodeKey(b.LocalLongTermKey, true)
		rki.LocalDiversifier, rki.LocalRandomValue = encodeIdent(b.LocalEDiv, b.LocalRand)
	}
	rki.IdentityResolvingKey = encodeKey(b.IdentityResolvingKey, b.Has(hci.KeyIRK))
	rki.SignatureKey = encodeKey(b.SignatureKey, b.Has(hci.KeyCSRK))
	rki.LocalSignatureKey = encodeKey(b.LocalSignatureKey, b.Has(hci.KeyLocalCSRK))

	return rki
}

func parseAddrType(s string) (blesm.AddrType, error) {
	switch s {
	case blesm.AddrPublic.String():
		return blesm.AddrPublic, nil
	case blesm.AddrRandom.String():
		return blesm.AddrRandom, nil
	}
	return 0, errors.Errorf("invalid address type %q", s)
}

func (rki remoteKeyInfo) bondInfo() (hci.BondInfo, error) {
	var b hci.BondInfo

	t, err := parseAddrType(rki.AddressType)
	if err != nil {
		return b, err
	}
	if b.Peer, err = blesm.ParseAddr(rki.Address, t); err != nil {
		return b, err
	}

	var ok bool
	if b.LongTermKey, ok, err = decodeKey(rki.LongTermKey, "long term key"); err != nil {
		return b, err
	} else if ok {
		if b.EDiv, b.Rand, err = decodeIdent(rki.EncryptionDiversifier, rki.RandomValue); err != nil {
			return b, err
		}
		b.Keys |= hci.KeyLTK
	}

	if b.LocalLongTermKey, ok, err = decodeKey(rki.LocalLongTermKey, "local long term key"); err != nil {
		return b, err
	} else if ok {
		if b.LocalEDiv, b.LocalRand, err = decodeIdent(rki.LocalDiversifier, rki.LocalRandomValue); err != nil {
			return b, err
		}
		b.Keys |= hci.KeyLocalLTK
	}

	if b.IdentityResolvingKey, ok, err = decodeKey(rki.IdentityResolvingKey, "identity resolving key"); err != nil {
		return b, err
	} else if ok {
		b.Keys |= hci.KeyIRK
	}

	if b.SignatureKey, ok, err = decodeKey(rki.SignatureKey, "signature key"); err != nil {
		return b, err
	} else if ok {
		b.Keys |= hci.KeyCSRK
	}

	if b.LocalSignatureKey, ok, err = decodeKey(rki.LocalSignatureKey, "local signature key"); err != nil {
		return b, err
	} else if ok {
		b.Keys |= hci.KeyLocalCSRK
	}

	b.KeySize = rki.KeySize
	b.Authenticated = rki.Authenticated
	b.Legacy = rki.Legacy
	b.RemoteSignCounter = rki.RemoteSignCounter
	b.LocalSignCounter = rki.LocalSignCounter
	return b, nil
}
