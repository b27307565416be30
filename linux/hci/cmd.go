package hci

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Command is an HCI command the host can marshal into a command packet.
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP is the return parameters carried by a Command Complete event.
type CommandRP interface {
	Unmarshal(b []byte) error
}

func marshal(c Command, b []byte, v interface{}) error {
	buf := bytes.NewBuffer(b)
	buf.Reset()
	if buf.Cap() < c.Len() {
		return io.ErrShortBuffer
	}
	return binary.Write(buf, binary.LittleEndian, v)
}

func unmarshal(b []byte, v interface{}) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, v)
}

// LEEncrypt implements LE Encrypt (0x08|0x0017) [Vol 2, Part E, 7.8.22]
type LEEncrypt struct {
	Key           [16]byte
	PlaintextData [16]byte
}

func (c *LEEncrypt) String() string {
	return "LE Encrypt (0x08|0x0017)"
}

// OpCode returns the opcode of the command.
func (c *LEEncrypt) OpCode() int { return OpLEEncrypt }

// Len returns the length of the command.
func (c *LEEncrypt) Len() int { return 32 }

// Marshal serializes the command parameters into binary form.
func (c *LEEncrypt) Marshal(b []byte) error {
	return marshal(c, b, c)
}

// LEEncryptRP returns the return parameter of LE Encrypt
type LEEncryptRP struct {
	Status        uint8
	EncryptedData [16]byte
}

// Unmarshal de-serializes the binary data and stores the result in the receiver.
func (c *LEEncryptRP) Unmarshal(b []byte) error {
	if len(b) < 17 {
		return fmt.Errorf("le encrypt rp: invalid length %d", len(b))
	}
	return unmarshal(b, c)
}

// LERand implements LE Rand (0x08|0x0018) [Vol 2, Part E, 7.8.23]
type LERand struct{}

func (c *LERand) String() string {
	return "LE Rand (0x08|0x0018)"
}

// OpCode returns the opcode of the command.
func (c *LERand) OpCode() int { return OpLERand }

// Len returns the length of the command.
func (c *LERand) Len() int { return 0 }

// Marshal serializes the command parameters into binary form.
func (c *LERand) Marshal(b []byte) error { return nil }

// LERandRP returns the return parameter of LE Rand
type LERandRP struct {
	Status       uint8
	RandomNumber [8]byte
}

// Unmarshal de-serializes the binary data and stores the result in the receiver.
func (c *LERandRP) Unmarshal(b []byte) error {
	if len(b) < 9 {
		return fmt.Errorf("le rand rp: invalid length %d", len(b))
	}
	return unmarshal(b, c)
}

// LEStartEncryption implements LE Start Encryption (0x08|0x0019) [Vol 2, Part E, 7.8.24]
type LEStartEncryption struct {
	ConnectionHandle     uint16
	RandomNumber         uint64
	EncryptedDiversifier uint16
	LongTermKey          [16]byte
}

func (c *LEStartEncryption) String() string {
	return "LE Start Encryption (0x08|0x0019)"
}

// OpCode returns the opcode of the command.
func (c *LEStartEncryption) OpCode() int { return OpLEStartEncryption }

// Len returns the length of the command.
func (c *LEStartEncryption) Len() int { return 28 }

// Marshal serializes the command parameters into binary form.
func (c *LEStartEncryption) Marshal(b []byte) error {
	return marshal(c, b, c)
}

// LELongTermKeyRequestReply implements LE Long Term Key Request Reply (0x08|0x001A) [Vol 2, Part E, 7.8.25]
type LELongTermKeyRequestReply struct {
	ConnectionHandle uint16
	LongTermKey      [16]byte
}

func (c *LELongTermKeyRequestReply) String() string {
	return "LE Long Term Key Request Reply (0x08|0x001A)"
}

// OpCode returns the opcode of the command.
func (c *LELongTermKeyRequestReply) OpCode() int { return OpLELongTermKeyRequestReply }

// Len returns the length of the command.
func (c *LELongTermKeyRequestReply) Len() int { return 18 }

// Marshal serializes the command parameters into binary form.
func (c *LELongTermKeyRequestReply) Marshal(b []byte) error {
	return marshal(c, b, c)
}

// LELongTermKeyRequestNegativeReply implements LE Long Term Key Request Negative Reply (0x08|0x001B) [Vol 2, Part E, 7.8.26]
type LELongTermKeyRequestNegativeReply struct {
	ConnectionHandle uint16
}

func (c *LELongTermKeyRequestNegativeReply) String() string {
	return "LE Long Term Key Request Negative Reply (0x08|0x001B)"
}

// OpCode returns the opcode of the command.
func (c *LELongTermKeyRequestNegativeReply) OpCode() int { return OpLELongTermKeyRequestNegativeReply }

// Len returns the length of the command.
func (c *LELongTermKeyRequestNegativeReply) Len() int { return 2 }

// Marshal serializes the command parameters into binary form.
func (c *LELongTermKeyRequestNegativeReply) Marshal(b []byte) error {
	return marshal(c, b, c)
}
