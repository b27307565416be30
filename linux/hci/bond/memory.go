package bond

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
)

// ErrStoreFull is returned when a new peer does not fit in a bounded store.
var ErrStoreFull = errors.New("bond store full")

// MemoryStore keeps bonding records in memory, optionally bounded to a number of peers.
type MemoryStore struct {
	lock     sync.RWMutex
	capacity int
	bonds    map[string]hci.BondInfo
}

// NewMemoryStore returns a store for at most capacity peers; zero means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		bonds:    make(map[string]hci.BondInfo),
	}
}

func (m *MemoryStore) Find(addr blesm.Addr) (hci.BondInfo, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	b, ok := m.bonds[addrKey(addr)]
	if !ok {
		return hci.BondInfo{}, errors.Wrapf(hci.ErrBondNotFound, "%s", addrKey(addr))
	}
	return b, nil
}

func (m *MemoryStore) Save(b hci.BondInfo) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := addrKey(b.Peer)
	if _, ok := m.bonds[key]; !ok && m.capacity > 0 && len(m.bonds) >= m.capacity {
		return errors.Wrapf(ErrStoreFull, "capacity %d", m.capacity)
	}
	m.bonds[key] = b
	return nil
}

func (m *MemoryStore) Exists(addr blesm.Addr) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	_, ok := m.bonds[addrKey(addr)]
	return ok
}

func (m *MemoryStore) Delete(addr blesm.Addr) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := addrKey(addr)
	if _, ok := m.bonds[key]; !ok {
		return errors.Wrapf(hci.ErrBondNotFound, "%s", key)
	}
	delete(m.bonds, key)
	return nil
}

// All returns the records ordered by address.
func (m *MemoryStore) All() ([]hci.BondInfo, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	keys := make([]string, 0, len(m.bonds))
	for k := range m.bonds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]hci.BondInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.bonds[k])
	}
	return out, nil
}

// Len returns the number of stored peers.
func (m *MemoryStore) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.bonds)
}
