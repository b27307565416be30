package evt

// Event codes [Vol 4, Part E, 7.7].
const (
	DisconnectionCompleteCode = 0x05
	EncryptionChangeCode      = 0x08
	CommandCompleteCode       = 0x0E
	LEMetaCode                = 0x3E

	LELongTermKeyRequestSubCode = 0x05
)

type CommandComplete []byte
type DisconnectionComplete []byte
type EncryptionChange []byte
type LELongTermKeyRequest []byte

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := e.ReturnParametersWErr()
	return v
}

func (e DisconnectionComplete) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e DisconnectionComplete) ConnectionHandle() uint16 {
	v, _ := e.ConnectionHandleWErr()
	return v
}

func (e DisconnectionComplete) Reason() uint8 {
	v, _ := e.ReasonWErr()
	return v
}

func (e EncryptionChange) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e EncryptionChange) ConnectionHandle() uint16 {
	v, _ := e.ConnectionHandleWErr()
	return v
}

func (e EncryptionChange) EncryptionEnabled() uint8 {
	v, _ := e.EncryptionEnabledWErr()
	return v
}

func (e LELongTermKeyRequest) SubeventCode() uint8 {
	v, _ := e.SubeventCodeWErr()
	return v
}

func (e LELongTermKeyRequest) ConnectionHandle() uint16 {
	v, _ := e.ConnectionHandleWErr()
	return v
}

func (e LELongTermKeyRequest) RandomNumber() uint64 {
	v, _ := e.RandomNumberWErr()
	return v
}

func (e LELongTermKeyRequest) EncryptionDiversifier() uint16 {
	v, _ := e.EncryptionDiversifierWErr()
	return v
}
