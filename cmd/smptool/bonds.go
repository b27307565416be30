package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/linux/hci/bond"
	"github.com/urfave/cli"
)

var bondFileFlag = cli.StringFlag{
	Name:  "file, f",
	Usage: "bond file (defaults to bonds.json in $SNAP_DATA)",
}

var bondsCommand = cli.Command{
	Name:  "bonds",
	Usage: "inspect a bond file",
	Subcommands: []cli.Command{
		{
			Name:  "list",
			Usage: "print every stored bond",
			Flags: []cli.Flag{
				bondFileFlag,
				cli.BoolFlag{Name: "keys", Usage: "print key material"},
			},
			Action: listBonds,
		},
		{
			Name:      "delete",
			Usage:     "remove the bond of a peer",
			ArgsUsage: "ADDR",
			Flags: []cli.Flag{
				bondFileFlag,
				cli.BoolFlag{Name: "random, r", Usage: "ADDR is a random address"},
			},
			Action: deleteBond,
		},
	},
}

func listBonds(c *cli.Context) error {
	store := bond.NewFileStore(c.String("file"))
	bonds, err := store.All()
	if err != nil {
		return errors.Wrapf(err, "read %s", store.Path())
	}
	if len(bonds) == 0 {
		fmt.Fprintf(out, "no bonds in %s\n", store.Path())
		return nil
	}

	for _, b := range bonds {
		fmt.Fprintf(out, "%v key size=%d authenticated=%v legacy=%v keys=%s\n",
			b.Peer, b.KeySize, b.Authenticated, b.Legacy, keyFlags(b.Keys))
		if !c.Bool("keys") {
			continue
		}
		if b.Has(hci.KeyLTK) {
			fmt.Fprintf(out, "  ltk       %x ediv=0x%04x rand=0x%016x\n", b.LongTermKey, b.EDiv, b.Rand)
		}
		if b.Has(hci.KeyLocalLTK) {
			fmt.Fprintf(out, "  local ltk %x ediv=0x%04x rand=0x%016x\n", b.LocalLongTermKey, b.LocalEDiv, b.LocalRand)
		}
		if b.Has(hci.KeyIRK) {
			fmt.Fprintf(out, "  irk       %x\n", b.IdentityResolvingKey)
		}
		if b.Has(hci.KeyCSRK) {
			fmt.Fprintf(out, "  csrk      %x\n", b.SignatureKey)
		}
		if b.Has(hci.KeyLocalCSRK) {
			fmt.Fprintf(out, "  local csrk %x\n", b.LocalSignatureKey)
		}
	}
	return nil
}

func deleteBond(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected a peer address")
	}
	typ := blesm.AddrPublic
	if c.Bool("random") {
		typ = blesm.AddrRandom
	}
	addr, err := blesm.ParseAddr(c.Args().First(), typ)
	if err != nil {
		return err
	}

	store := bond.NewFileStore(c.String("file"))
	if err := store.Delete(addr); err != nil {
		return errors.Wrapf(err, "delete %v", addr)
	}
	fmt.Fprintf(out, "deleted %v\n", addr)
	return nil
}

func keyFlags(k byte) string {
	var names []string
	for _, f := range []struct {
		flag byte
		name string
	}{
		{hci.KeyLTK, "ltk"},
		{hci.KeyLocalLTK, "local-ltk"},
		{hci.KeyIRK, "irk"},
		{hci.KeyCSRK, "csrk"},
		{hci.KeyLocalCSRK, "local-csrk"},
	} {
		if k&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
