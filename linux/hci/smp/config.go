package smp

import (
	"time"

	"github.com/rigado/blesm"
)

// SmpConfig is the pairing feature set carried by a Pairing Request or Pairing Response.
type SmpConfig struct {
	IoCap, OobFlag, AuthReq, MaxKeySize, InitKeyDist, RespKeyDist byte
}

const (
	defaultTimeout    = 30 * time.Second
	defaultMinKeySize = 7
	maxKeySize        = 16
)

// DefaultSmpConfig offers bonding with secure connections, no MITM, all keys.
func DefaultSmpConfig() SmpConfig {
	return SmpConfig{
		IoCap:       IoCapNoInputNoOutput,
		OobFlag:     0,
		AuthReq:     AuthReqBond | AuthReqSC,
		MaxKeySize:  maxKeySize,
		InitKeyDist: keyDistMask,
		RespKeyDist: keyDistMask,
	}
}

func (c SmpConfig) bonding() bool {
	return c.AuthReq&AuthReqBondMask == AuthReqBond
}

func (c SmpConfig) mitm() bool {
	return c.AuthReq&AuthReqMitm != 0
}

func (c SmpConfig) sc() bool {
	return c.AuthReq&AuthReqSC != 0
}

func (c SmpConfig) keypress() bool {
	return c.AuthReq&AuthReqKeypress != 0
}

func (c SmpConfig) marshal(code byte) [7]byte {
	return [7]byte{code, c.IoCap, c.OobFlag, c.AuthReq, c.MaxKeySize, c.InitKeyDist, c.RespKeyDist}
}

func unmarshalSmpConfig(b []byte) SmpConfig {
	return SmpConfig{
		IoCap:       b[0],
		OobFlag:     b[1],
		AuthReq:     b[2],
		MaxKeySize:  b[3],
		InitKeyDist: b[4],
		RespKeyDist: b[5],
	}
}

// config is the local security policy of a Host.
type config struct {
	SmpConfig

	minKeySize   int
	timeout      time.Duration
	scOnly       bool
	methods      byte
	passkey      uint32
	fixedPasskey bool
	oob          [16]byte
	haveOOB      bool

	identity blesm.Addr
	ir       [16]byte
	er       [16]byte
}

func defaultConfig() config {
	return config{
		SmpConfig:  DefaultSmpConfig(),
		minKeySize: defaultMinKeySize,
		timeout:    defaultTimeout,
		methods:    AllMethods,
	}
}

// request is the Pairing Request this device sends as initiator.
func (c *config) request() SmpConfig {
	r := c.SmpConfig
	if c.haveOOB {
		r.OobFlag = oobDataPreset
	}
	if c.scOnly {
		r.AuthReq |= AuthReqSC
	}
	return r
}

// response answers req: the responder may only distribute or request keys the initiator asked for.
func (c *config) response(req SmpConfig) SmpConfig {
	r := c.request()
	r.InitKeyDist &= req.InitKeyDist & keyDistMask
	r.RespKeyDist &= req.RespKeyDist & keyDistMask
	return r
}
