package hci

// HCI Packet types
const (
	PktTypeCommand uint8 = 0x01
	PktTypeACLData uint8 = 0x02
	PktTypeEvent   uint8 = 0x04
)

// CidSMP is the fixed L2CAP channel of the Security Manager on LE-U links.
const CidSMP = uint16(0x0006)

// Command opcodes used by the security manager [Vol 4, Part E, 7.8].
const (
	OpLEEncrypt                         = 0x2017
	OpLERand                            = 0x2018
	OpLEStartEncryption                 = 0x2019
	OpLELongTermKeyRequestReply         = 0x201A
	OpLELongTermKeyRequestNegativeReply = 0x201B
)

const (
	RoleMaster = 0x00
	RoleSlave  = 0x01
)
