package bond

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/toolbox"
	"github.com/stretchr/testify/require"
)

func testBond(addr string, seed byte) hci.BondInfo {
	b := hci.BondInfo{
		Peer:          blesm.MustParseAddr(addr, blesm.AddrPublic),
		EDiv:          0x1234,
		Rand:          0x0102030405060708,
		LocalEDiv:     0x4321,
		LocalRand:     0x0807060504030201,
		KeySize:       16,
		Authenticated: true,
		Legacy:        true,
		Keys:          hci.KeyLTK | hci.KeyLocalLTK | hci.KeyIRK | hci.KeyCSRK,
	}
	for i := 0; i < 16; i++ {
		b.LongTermKey[i] = seed + byte(i)
		b.LocalLongTermKey[i] = seed ^ byte(i)
		b.IdentityResolvingKey[i] = seed + 0x20 + byte(i)
		b.SignatureKey[i] = seed + 0x40 + byte(i)
	}
	return b
}

func tempFileStore(t *testing.T) *FileStore {
	dir, err := ioutil.TempDir("", "bond")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return NewFileStore(filepath.Join(dir, "bonds.json"))
}

func stores(t *testing.T) map[string]hci.BondManager {
	return map[string]hci.BondManager{
		"file":   tempFileStore(t),
		"memory": NewMemoryStore(0),
	}
}

func TestSaveFind(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := testBond("11:22:33:44:55:66", 0x10)
			require.False(t, s.Exists(b.Peer))
			require.NoError(t, s.Save(b))
			require.True(t, s.Exists(b.Peer))

			got, err := s.Find(b.Peer)
			require.NoError(t, err)
			require.Equal(t, b, got)

			// same address, other type is a different peer
			other := b.Peer
			other.Type = blesm.AddrRandom
			_, err = s.Find(other)
			require.Equal(t, hci.ErrBondNotFound, errors.Cause(err))
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := testBond("11:22:33:44:55:66", 0x10)
			second := testBond("11:22:33:44:55:66", 0x80)
			second.Keys = hci.KeyLTK
			second.IdentityResolvingKey = [16]byte{}
			second.SignatureKey = [16]byte{}
			second.LocalLongTermKey = [16]byte{}
			second.LocalEDiv, second.LocalRand = 0, 0

			require.NoError(t, s.Save(first))
			require.NoError(t, s.Save(second))

			all, err := s.All()
			require.NoError(t, err)
			require.Len(t, all, 1)
			require.Equal(t, second, all[0])
		})
	}
}

func TestDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := testBond("11:22:33:44:55:66", 0x10)
			b := testBond("aa:bb:cc:dd:ee:ff", 0x20)
			require.NoError(t, s.Save(a))
			require.NoError(t, s.Save(b))

			require.NoError(t, s.Delete(a.Peer))
			require.False(t, s.Exists(a.Peer))
			require.True(t, s.Exists(b.Peer))
			require.Equal(t, hci.ErrBondNotFound, errors.Cause(s.Delete(a.Peer)))

			all, err := s.All()
			require.NoError(t, err)
			require.Len(t, all, 1)
		})
	}
}

func TestMemoryStoreFull(t *testing.T) {
	s := NewMemoryStore(1)
	a := testBond("11:22:33:44:55:66", 0x10)
	b := testBond("aa:bb:cc:dd:ee:ff", 0x20)

	require.NoError(t, s.Save(a))
	require.Equal(t, ErrStoreFull, errors.Cause(s.Save(b)))

	// replacing an existing peer still fits
	require.NoError(t, s.Save(testBond("11:22:33:44:55:66", 0x30)))
	require.Equal(t, 1, s.Len())
}

func TestFileStorePersists(t *testing.T) {
	s := tempFileStore(t)
	b := testBond("11:22:33:44:55:66", 0x10)
	require.NoError(t, s.Save(b))

	again := NewFileStore(s.Path())
	got, err := again.Find(b.Peer)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestFileStoreCorrupt(t *testing.T) {
	s := tempFileStore(t)
	require.NoError(t, ioutil.WriteFile(s.Path(), []byte("{not json"), 0600))

	_, err := s.Find(blesm.MustParseAddr("11:22:33:44:55:66", blesm.AddrPublic))
	require.Error(t, err)
	require.Error(t, s.Save(testBond("11:22:33:44:55:66", 0x10)))
}

func TestResolveIdentity(t *testing.T) {
	s := NewMemoryStore(0)
	b := testBond("11:22:33:44:55:66", 0x10)
	require.NoError(t, s.Save(b))

	prand := [3]byte{0x01, 0x02, 0x43}
	hash := toolbox.AH(b.IdentityResolvingKey, prand)
	var wire [6]byte
	copy(wire[0:3], hash[:])
	copy(wire[3:6], prand[:])
	rpa := blesm.AddrFromWire(blesm.AddrRandom, wire)
	require.True(t, rpa.IsResolvablePrivate())

	got, ok := hci.ResolveIdentity(s, rpa)
	require.True(t, ok)
	require.Equal(t, b.Peer, got.Peer)

	wire[0] ^= 0xff
	_, ok = hci.ResolveIdentity(s, blesm.AddrFromWire(blesm.AddrRandom, wire))
	require.False(t, ok)
}
