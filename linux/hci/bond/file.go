package bond

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	bondFilename = "bonds.json"
)

// FileStore keeps bonding records in a JSON file. Saving a peer that is already
// present replaces its record.
type FileStore struct {
	lock   sync.RWMutex
	path   string
	logger blesm.Logger
}

// NewFileStore returns a store backed by path. An empty path uses bonds.json in $SNAP_DATA.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(os.Getenv("SNAP_DATA"), bondFilename)
	}
	return &FileStore{path: path, logger: blesm.ComponentLogger("bond")}
}

func (m *FileStore) Path() string {
	return m.path
}

func (m *FileStore) Exists(addr blesm.Addr) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		m.logger.Error(err)
		return false
	}
	return indexOf(bonds, addr) >= 0
}

func (m *FileStore) Find(addr blesm.Addr) (hci.BondInfo, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		return hci.BondInfo{}, err
	}

	i := indexOf(bonds, addr)
	if i < 0 {
		return hci.BondInfo{}, errors.Wrapf(hci.ErrBondNotFound, "%s", addrKey(addr))
	}
	return bonds.Bonds[i].bondInfo()
}

func (m *FileStore) Save(b hci.BondInfo) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	rki := createRemoteKeyInfo(b)
	if i := indexOf(bonds, b.Peer); i >= 0 {
		bonds.Bonds[i] = rki
	} else {
		bonds.Bonds = append(bonds.Bonds, rki)
	}

	return m.store(bonds)
}

func (m *FileStore) Delete(addr blesm.Addr) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	bonds, err := m.load()
	if err != nil {
		return err
	}

	i := indexOf(bonds, addr)
	if i < 0 {
		return errors.Wrapf(hci.ErrBondNotFound, "%s", addrKey(addr))
	}
	bonds.Bonds = append(bonds.Bonds[:i], bonds.Bonds[i+1:]...)
	return m.store(bonds)
}

func (m *FileStore) All() ([]hci.BondInfo, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	bonds, err := m.load()
	if err != nil {
		return nil, err
	}

	out := make([]hci.BondInfo, 0, len(bonds.Bonds))
	for _, rki := range bonds.Bonds {
		b, err := rki.bondInfo()
		if err != nil {
			m.logger.Warnf("skipping bond %s: %v", rki.Address, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func indexOf(bonds *bondFile, addr blesm.Addr) int {
	key := addrKey(addr)
	for i, b := range bonds.Bonds {
		t, err := parseAddrType(b.AddressType)
		if err != nil {
			continue
		}
		a, err := blesm.ParseAddr(b.Address, t)
		if err != nil {
			continue
		}
		if addrKey(a) == key {
			return i
		}
	}
	return -1
}

func (m *FileStore) load() (*bondFile, error) {
	var bonds bondFile

	fileData, err := ioutil.ReadFile(m.path)
	if os.IsNotExist(err) {
		bonds.Bonds = make([]remoteKeyInfo, 0, 1)
		return &bonds, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read bond file")
	}

	if len(fileData) > 0 {
		if err := json.Unmarshal(fileData, &bonds); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal current bond info")
		}
	}

	if len(bonds.Bonds) == 0 {
		bonds.Bonds = make([]remoteKeyInfo, 0, 1)
	}
	return &bonds, nil
}

// store writes a temporary file and renames it over the old one.
func (m *FileStore) store(bonds *bondFile) error {
	out, err := json.MarshalIndent(bonds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal bonds to json")
	}

	tmp := m.path + ".tmp"
	if err := ioutil.WriteFile(tmp, out, 0600); err != nil {
		return errors.Wrap(err, "failed to update bond information")
	}
	return errors.Wrap(os.Rename(tmp, m.path), "failed to replace bond file")
}
