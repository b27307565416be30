package toolbox

import (
	"bytes"
	"crypto"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/pkg/errors"
	"github.com/rigado/blesm/sliceops"
	"github.com/wsddn/go-ecdh"
)

// ErrInvalidPublicKey is returned for a public key that is not a P-256 point.
var ErrInvalidPublicKey = errors.New("invalid public key")

// KeyPair is a P-256 key pair used for the LE Secure Connections public key exchange.
type KeyPair struct {
	public  crypto.PublicKey
	private crypto.PrivateKey
}

func p256() ecdh.ECDH {
	return ecdh.NewEllipticECDH(elliptic.P256())
}

// GenerateKeyPair creates a fresh key pair.
func GenerateKeyPair() (*KeyPair, error) {
	var err error
	kp := KeyPair{}

	kp.private, kp.public, err = p256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate p256 key")
	}

	return &kp, nil
}

// Public returns the public key as carried in the Pairing Public Key PDU: X then Y, each little-endian.
func (k *KeyPair) Public() [64]byte {
	ba := p256().Marshal(k.public)
	ba = ba[1:] //remove header

	var out [64]byte
	copy(out[0:32], sliceops.SwapBuf(ba[:32]))
	copy(out[32:64], sliceops.SwapBuf(ba[32:]))
	return out
}

// PublicX returns the X coordinate of the public key, little-endian.
func (k *KeyPair) PublicX() [32]byte {
	var x [32]byte
	pub := k.Public()
	copy(x[:], pub[0:32])
	return x
}

func unmarshalPublicKey(xy [64]byte) (crypto.PublicKey, error) {
	r := make([]byte, 0, 65)
	r = append(r, 0x04)
	r = append(r, sliceops.SwapBuf(xy[0:32])...)
	r = append(r, sliceops.SwapBuf(xy[32:64])...)

	pk, ok := p256().Unmarshal(r)
	if !ok {
		return nil, ErrInvalidPublicKey
	}
	return pk, nil
}

// ValidatePublicKey checks that xy is a point on P-256.
func ValidatePublicKey(xy [64]byte) error {
	_, err := unmarshalPublicKey(xy)
	return err
}

// DHKey computes the shared secret with the peer public key, little-endian.
func (k *KeyPair) DHKey(peer [64]byte) ([32]byte, error) {
	var out [32]byte

	pub, err := unmarshalPublicKey(peer)
	if err != nil {
		return out, err
	}

	b, err := p256().GenerateSharedSecret(k.private, pub)
	if err != nil {
		return out, errors.Wrap(err, "dhkey")
	}
	if len(b) > 32 {
		return out, errors.Errorf("dhkey length %d", len(b))
	}

	// the shared secret drops leading zero octets
	var be [32]byte
	copy(be[32-len(b):], b)
	sliceops.Zero(b)
	return sliceops.Swap32(be), nil
}

// SamePublic reports whether xy equals the local public key.
func (k *KeyPair) SamePublic(xy [64]byte) bool {
	pub := k.Public()
	return bytes.Equal(pub[:], xy[:])
}
