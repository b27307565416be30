package blesm

import (
	"time"
)

// SecurityOption is an interface which the security manager should implement to allow using configuration options
type SecurityOption interface {
	SetIOCapability(ioCap byte) error
	SetAuthRequirements(authReq byte) error
	SetOOBData(tk []byte) error
	SetMaxKeySize(n int) error
	SetMinKeySize(n int) error
	SetKeyDistribution(initKeys, respKeys byte) error
	SetTimeout(d time.Duration) error
	SetSecureConnectionsOnly(enabled bool) error
	SetAcceptedMethods(mask byte) error
	SetFixedPasskey(passkey uint32) error
	SetIdentity(addr Addr, ir [16]byte) error
	SetEncryptionRoot(er [16]byte) error
	EnableSecurity(bondManager interface{}) error
}

// An Option is a configuration function, which configures the security manager.
type Option func(SecurityOption) error

// OptIOCapability sets the local IO capability advertised in the pairing feature exchange.
func OptIOCapability(ioCap byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetIOCapability(ioCap)
	}
}

// OptAuthRequirements sets the AuthReq bitmask (bonding, MITM, SC, keypress).
func OptAuthRequirements(authReq byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetAuthRequirements(authReq)
	}
}

// OptOOBData sets the 16 byte legacy out of band temporary key and raises the OOB flag.
func OptOOBData(tk []byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetOOBData(tk)
	}
}

// OptMaxKeySize sets the maximum encryption key size offered.
func OptMaxKeySize(n int) Option {
	return func(opt SecurityOption) error {
		return opt.SetMaxKeySize(n)
	}
}

// OptMinKeySize sets the smallest encryption key size accepted.
func OptMinKeySize(n int) Option {
	return func(opt SecurityOption) error {
		return opt.SetMinKeySize(n)
	}
}

// OptKeyDistribution sets the initiator and responder key distribution masks.
func OptKeyDistribution(initKeys, respKeys byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetKeyDistribution(initKeys, respKeys)
	}
}

// OptTimeout overrides the pairing timeout.
func OptTimeout(d time.Duration) Option {
	return func(opt SecurityOption) error {
		return opt.SetTimeout(d)
	}
}

// OptSecureConnectionsOnly rejects legacy pairing.
func OptSecureConnectionsOnly(enabled bool) Option {
	return func(opt SecurityOption) error {
		return opt.SetSecureConnectionsOnly(enabled)
	}
}

// OptAcceptedMethods restricts the key generation methods that may be used.
func OptAcceptedMethods(mask byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetAcceptedMethods(mask)
	}
}

// OptFixedPasskey uses passkey instead of a random one when displaying.
func OptFixedPasskey(passkey uint32) Option {
	return func(opt SecurityOption) error {
		return opt.SetFixedPasskey(passkey)
	}
}

// OptIdentity sets the identity address and identity root used to derive the local IRK.
func OptIdentity(addr Addr, ir [16]byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetIdentity(addr, ir)
	}
}

// OptEncryptionRoot sets the encryption root used for legacy LTK and CSRK generation.
func OptEncryptionRoot(er [16]byte) Option {
	return func(opt SecurityOption) error {
		return opt.SetEncryptionRoot(er)
	}
}

// OptEnableSecurity enables bonding with devices
func OptEnableSecurity(bondManager interface{}) Option {
	return func(opt SecurityOption) error {
		return opt.EnableSecurity(bondManager)
	}
}
