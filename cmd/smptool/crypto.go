package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rigado/blesm/toolbox"
	"github.com/urfave/cli"
)

// Values are hex strings in the little-endian order used on air. cmac takes
// RFC 4493 byte order.

var cryptoCommand = cli.Command{
	Name:  "crypto",
	Usage: "evaluate the security functions",
	Subcommands: []cli.Command{
		{
			Name:      "cmac",
			Usage:     "AES-CMAC",
			ArgsUsage: "KEY MSG",
			Action: func(c *cli.Context) error {
				var a args
				key, msg := a.b16(c, 0), a.bytes(c, 1)
				if err := a.check(c, 2); err != nil {
					return err
				}
				return printHex(toolbox.AESCMAC(key, msg))
			},
		},
		{
			Name:      "c1",
			Usage:     "legacy confirm value",
			ArgsUsage: "K R PREQ PRES IAT IA RAT RA",
			Action: func(c *cli.Context) error {
				var a args
				k, r := a.b16(c, 0), a.b16(c, 1)
				preq, pres := a.b7(c, 2), a.b7(c, 3)
				iat, ia := a.u8(c, 4), a.b6(c, 5)
				rat, ra := a.u8(c, 6), a.b6(c, 7)
				if err := a.check(c, 8); err != nil {
					return err
				}
				return printHex(toolbox.C1(k, r, preq, pres, iat, ia, rat, ra))
			},
		},
		{
			Name:      "s1",
			Usage:     "legacy short term key",
			ArgsUsage: "K R1 R2",
			Action: func(c *cli.Context) error {
				var a args
				k, r1, r2 := a.b16(c, 0), a.b16(c, 1), a.b16(c, 2)
				if err := a.check(c, 3); err != nil {
					return err
				}
				return printHex(toolbox.S1(k, r1, r2))
			},
		},
		{
			Name:      "f4",
			Usage:     "secure connections confirm value",
			ArgsUsage: "U V X Z",
			Action: func(c *cli.Context) error {
				var a args
				u, v, x, z := a.b32(c, 0), a.b32(c, 1), a.b16(c, 2), a.u8(c, 3)
				if err := a.check(c, 4); err != nil {
					return err
				}
				return printHex(toolbox.F4(u, v, x, z))
			},
		},
		{
			Name:      "f5",
			Usage:     "secure connections MacKey and LTK",
			ArgsUsage: "W N1 N2 A1 A2",
			Action: func(c *cli.Context) error {
				var a args
				w, n1, n2 := a.b32(c, 0), a.b16(c, 1), a.b16(c, 2)
				a1, a2 := a.b7(c, 3), a.b7(c, 4)
				if err := a.check(c, 5); err != nil {
					return err
				}
				mac, ltk := toolbox.F5(w, n1, n2, a1, a2)
				fmt.Fprintf(out, "mackey %x\nltk    %x\n", mac, ltk)
				return nil
			},
		},
		{
			Name:      "f6",
			Usage:     "secure connections DHKey check",
			ArgsUsage: "W N1 N2 R IOCAP A1 A2",
			Action: func(c *cli.Context) error {
				var a args
				w, n1, n2, r := a.b16(c, 0), a.b16(c, 1), a.b16(c, 2), a.b16(c, 3)
				io := a.b3(c, 4)
				a1, a2 := a.b7(c, 5), a.b7(c, 6)
				if err := a.check(c, 7); err != nil {
					return err
				}
				return printHex(toolbox.F6(w, n1, n2, r, io, a1, a2))
			},
		},
		{
			Name:      "g2",
			Usage:     "numeric comparison value",
			ArgsUsage: "U V X Y",
			Action: func(c *cli.Context) error {
				var a args
				u, v, x, y := a.b32(c, 0), a.b32(c, 1), a.b16(c, 2), a.b16(c, 3)
				if err := a.check(c, 4); err != nil {
					return err
				}
				fmt.Fprintf(out, "%06d\n", toolbox.G2(u, v, x, y))
				return nil
			},
		},
		{
			Name:      "ah",
			Usage:     "random address hash",
			ArgsUsage: "IRK PRAND",
			Action: func(c *cli.Context) error {
				var a args
				irk, r := a.b16(c, 0), a.b3(c, 1)
				if err := a.check(c, 2); err != nil {
					return err
				}
				h := toolbox.AH(irk, r)
				return printHex(h[:])
			},
		},
	},
}

// args decodes positional arguments and keeps the first error.
type args struct {
	err error
}

func (a *args) bytes(c *cli.Context, i int) []byte {
	if a.err != nil {
		return nil
	}
	s := c.Args().Get(i)
	if s == "" {
		a.err = errors.Errorf("missing argument %d", i+1)
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		a.err = errors.Wrapf(err, "argument %d", i+1)
		return nil
	}
	return b
}

func (a *args) fixed(c *cli.Context, i, n int) []byte {
	b := a.bytes(c, i)
	if a.err == nil && len(b) != n {
		a.err = errors.Errorf("argument %d: expected %d bytes, got %d", i+1, n, len(b))
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (a *args) b3(c *cli.Context, i int) (out [3]byte) {
	copy(out[:], a.fixed(c, i, 3))
	return out
}

func (a *args) b6(c *cli.Context, i int) (out [6]byte) {
	copy(out[:], a.fixed(c, i, 6))
	return out
}

func (a *args) b7(c *cli.Context, i int) (out [7]byte) {
	copy(out[:], a.fixed(c, i, 7))
	return out
}

func (a *args) b16(c *cli.Context, i int) (out [16]byte) {
	copy(out[:], a.fixed(c, i, 16))
	return out
}

func (a *args) b32(c *cli.Context, i int) (out [32]byte) {
	copy(out[:], a.fixed(c, i, 32))
	return out
}

func (a *args) u8(c *cli.Context, i int) byte {
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(c.Args().Get(i), 0, 8)
	if err != nil {
		a.err = errors.Wrapf(err, "argument %d", i+1)
	}
	return byte(v)
}

func (a *args) check(c *cli.Context, n int) error {
	if a.err != nil {
		return a.err
	}
	if c.NArg() != n {
		return errors.Errorf("expected %d arguments, got %d", n, c.NArg())
	}
	return nil
}

func printHex(v interface{}) error {
	switch b := v.(type) {
	case [16]byte:
		fmt.Fprintln(out, hex.EncodeToString(b[:]))
	case []byte:
		fmt.Fprintln(out, hex.EncodeToString(b))
	default:
		return errors.Errorf("unsupported value %T", v)
	}
	return nil
}
