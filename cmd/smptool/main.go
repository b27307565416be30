package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rigado/blesm"
	"github.com/urfave/cli"
)

// out receives command output.
var out io.Writer = os.Stdout

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "smptool"
	app.Usage = "LE security manager toolbox, bond store administration and pairing simulation"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug, d", Usage: "enable trace logging"},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			blesm.SetLogLevelMax()
		}
		return nil
	}
	app.Commands = []cli.Command{
		cryptoCommand,
		bondsCommand,
		pairCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "smptool: %v\n", err)
		os.Exit(1)
	}
}
