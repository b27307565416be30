// Package toolbox holds the cryptographic functions used by LE pairing: AES-CMAC,
// the legacy functions c1 and s1, the Secure Connections functions f4, f5, f6 and g2,
// the key generation helpers ah, d1 and dm, and the P-256 key agreement used during
// the public key exchange.
//
// Apart from AESCMAC, AES128 and Subkeys, which use the standard (most significant
// octet first) notation, every value is in little-endian air order, the way it is
// carried in Security Manager PDUs and in the LE Encrypt command.
package toolbox
