package smp

import "fmt"

const (
	pairingRequest          = 0x01 // Pairing Request LE-U, ACL-U
	pairingResponse         = 0x02 // Pairing Response LE-U, ACL-U
	pairingConfirm          = 0x03 // Pairing Confirm LE-U
	pairingRandom           = 0x04 // Pairing Random LE-U
	pairingFailed           = 0x05 // Pairing Failed LE-U, ACL-U
	encryptionInformation   = 0x06 // Encryption Information LE-U
	masterIdentification    = 0x07 // Master Identification LE-U
	identityInformation     = 0x08 // Identity Information LE-U, ACL-U
	identityAddrInformation = 0x09 // Identity Address Information LE-U, ACL-U
	signingInformation      = 0x0A // Signing Information LE-U, ACL-U
	securityRequest         = 0x0B // Security Request LE-U
	pairingPublicKey        = 0x0C // Pairing Public Key LE-U
	pairingDHKeyCheck       = 0x0D // Pairing DHKey Check LE-U
	pairingKeypress         = 0x0E // Pairing Keypress Notification LE-U

	passkeyIterationCount = 20
	maxPasskey            = 999999

	oobDataPreset = 0x01
)

// IO capabilities [Vol 3, Part H, 3.5.1]
const (
	IoCapDisplayOnly     = 0x00
	IoCapDisplayYesNo    = 0x01
	IoCapKeyboardOnly    = 0x02
	IoCapNoInputNoOutput = 0x03
	IoCapKeyboardDisplay = 0x04
)

// AuthReq bits
const (
	AuthReqBondMask = byte(0x03)
	AuthReqBond     = byte(0x01)
	AuthReqNoBond   = byte(0x00)
	AuthReqMitm     = byte(0x04)
	AuthReqSC       = byte(0x08)
	AuthReqKeypress = byte(0x10)
	AuthReqCT2      = byte(0x20)
)

// Key distribution bits
const (
	KeyDistEncKey  = byte(0x01)
	KeyDistIdKey   = byte(0x02)
	KeyDistSignKey = byte(0x04)
	KeyDistLinkKey = byte(0x08)

	keyDistMask = KeyDistEncKey | KeyDistIdKey | KeyDistSignKey
)

// Keypress notification types
const (
	KeypressEntryStarted   = 0x00
	KeypressDigitEntered   = 0x01
	KeypressDigitErased    = 0x02
	KeypressCleared        = 0x03
	KeypressEntryCompleted = 0x04
)

// Reason is a Pairing Failed reason code.
type Reason byte

// [Vol 3, Part H, 3.5.5]
const (
	ReasonPasskeyEntryFailed         Reason = 0x01
	ReasonOOBNotAvailable            Reason = 0x02
	ReasonAuthenticationRequirements Reason = 0x03
	ReasonConfirmValueFailed         Reason = 0x04
	ReasonPairingNotSupported        Reason = 0x05
	ReasonEncryptionKeySize          Reason = 0x06
	ReasonCommandNotSupported        Reason = 0x07
	ReasonUnspecified                Reason = 0x08
	ReasonRepeatedAttempts           Reason = 0x09
	ReasonInvalidParameters          Reason = 0x0A
	ReasonDHKeyCheckFailed           Reason = 0x0B
	ReasonNumericComparisonFailed    Reason = 0x0C
	ReasonBREDRPairingInProgress     Reason = 0x0D
	ReasonCrossTransportNotAllowed   Reason = 0x0E
)

var pairingFailedReason = []string{
	"reserved",
	"passkey entry failed",
	"oob not available",
	"authentication requirements",
	"confirm value failed",
	"pairing not supported",
	"encryption key size",
	"command not supported",
	"unspecified reason",
	"repeated attempts",
	"invalid parameters",
	"dhkey check failed",
	"numeric comparison failed",
	"BR/EDR pairing in progress",
	"cross-transport key derivation/generation not allowed",
}

func (r Reason) String() string {
	if int(r) < len(pairingFailedReason) {
		return pairingFailedReason[r]
	}
	return fmt.Sprintf("reason 0x%02x", byte(r))
}

// Method is the key generation method chosen by the feature exchange.
type Method byte

const (
	JustWorks Method = iota
	PasskeyEntry
	NumericComparison
	OutOfBand
)

var methodStrings = map[Method]string{
	JustWorks:         "just works",
	PasskeyEntry:      "passkey entry",
	NumericComparison: "numeric comparison",
	OutOfBand:         "out of band",
}

func (m Method) String() string {
	if s, ok := methodStrings[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", byte(m))
}

// Mask returns the bit of m in an accepted method mask.
func (m Method) Mask() byte {
	return 1 << m
}

// AllMethods accepts every key generation method.
const AllMethods = byte(0x0f)

// Role of the local device in the pairing procedure.
type Role byte

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Phase is the position of a connection in the pairing procedure. Within one
// attempt the phase only moves forward.
type Phase int

const (
	Idle Phase = iota
	RequestSent
	RequestReceived
	FeatureExchanged
	LegacyConfirmExchange
	SCPublicKeyExchange
	TKGeneration
	DHKeyCheck
	ShortTermKeyReady
	EncryptionPending
	KeyDistribution
	Bonded
	Aborted
)

var phaseStrings = []string{
	"idle",
	"request sent",
	"request received",
	"feature exchanged",
	"legacy confirm exchange",
	"sc public key exchange",
	"tk generation",
	"dhkey check",
	"short term key ready",
	"encryption pending",
	"key distribution",
	"bonded",
	"aborted",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseStrings) {
		return phaseStrings[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}
