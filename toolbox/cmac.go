package toolbox

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/aead/cmac"
	"github.com/rigado/blesm/sliceops"
)

func newCipher(key []byte) cipher.Block {
	c, err := aes.NewCipher(key)
	if err != nil {
		// only reachable with a key that is not 16 bytes
		panic(err)
	}
	return c
}

// AESCMAC computes the RFC 4493 AES-CMAC tag of msg.
func AESCMAC(key [16]byte, msg []byte) [16]byte {
	mMac, err := cmac.New(newCipher(key[:]))
	if err != nil {
		panic(err)
	}
	mMac.Write(msg)

	var out [16]byte
	copy(out[:], mMac.Sum(nil))
	return out
}

// AES128 encrypts one block.
func AES128(key, plaintext [16]byte) [16]byte {
	var out [16]byte
	newCipher(key[:]).Encrypt(out[:], plaintext[:])
	return out
}

// Subkeys derives the CMAC subkeys K1 and K2 from AES-128(key, 0).
func Subkeys(key [16]byte) (k1, k2 [16]byte) {
	l := AES128(key, [16]byte{})
	k1 = double(l)
	k2 = double(k1)
	return k1, k2
}

func double(in [16]byte) [16]byte {
	var out [16]byte
	var carry byte
	for i := 15; i >= 0; i-- {
		out[i] = in[i]<<1 | carry
		carry = in[i] >> 7
	}
	if in[0]&0x80 != 0 {
		out[15] ^= 0x87
	}
	return out
}

// E is the security function e: AES-128 with key and data in little-endian order.
func E(key, plaintext [16]byte) [16]byte {
	return sliceops.Swap16(AES128(sliceops.Swap16(key), sliceops.Swap16(plaintext)))
}

// cmacLE runs AES-CMAC over little-endian key and message, returning a little-endian tag.
// The swapped copy of msg may hold key material and is cleared before returning.
func cmacLE(key [16]byte, msg []byte) [16]byte {
	m := sliceops.SwapBuf(msg)
	defer sliceops.Zero(m)
	return sliceops.Swap16(AESCMAC(sliceops.Swap16(key), m))
}

// Xor128 returns a XOR b.
func Xor128(a, b [16]byte) [16]byte {
	var out [16]byte
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
