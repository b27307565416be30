package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blesm"
	"github.com/rigado/blesm/linux/hci"
	"github.com/rigado/blesm/linux/hci/bond"
	"github.com/rigado/blesm/linux/hci/smp"
	"github.com/rigado/blesm/linux/runloop"
	"github.com/urfave/cli"
)

const (
	simCentralHandle    = 0x0040
	simPeripheralHandle = 0x0041
)

var pairCommand = cli.Command{
	Name:  "pair",
	Usage: "pair two simulated devices over an in-process link",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "init-io", Value: smp.IoCapNoInputNoOutput, Usage: "initiator IO capability (0-4)"},
		cli.IntFlag{Name: "resp-io", Value: smp.IoCapNoInputNoOutput, Usage: "responder IO capability (0-4)"},
		cli.BoolFlag{Name: "sc", Usage: "request LE Secure Connections"},
		cli.BoolFlag{Name: "mitm", Usage: "request MITM protection"},
		cli.BoolFlag{Name: "no-bond", Usage: "pair without bonding"},
		cli.BoolFlag{Name: "reject", Usage: "answer no to numeric comparison"},
		cli.IntFlag{Name: "passkey", Value: -1, Usage: "passkey typed by inputting sides instead of the displayed one"},
		cli.StringFlag{Name: "bond-file", Usage: "persist the initiator bonds to this file"},
		cli.StringFlag{Name: "central", Value: "11:22:33:44:55:66", Usage: "initiator public address"},
		cli.StringFlag{Name: "peripheral", Value: "c1:c2:c3:c4:c5:c6", Usage: "responder static random address"},
		cli.DurationFlag{Name: "timeout", Value: 40 * time.Second, Usage: "give up after this long"},
	},
	Action: runPair,
}

type simDevice struct {
	name   string
	host   *smp.Host
	handle uint16
	local  blesm.Addr
	peer   blesm.Addr
	role   smp.Role

	shown  *uint32
	todo   []smp.Event
	result smp.Event
}

type simulation struct {
	loop    *runloop.Loop
	devs    [2]*simDevice
	passkey int
	reject  bool
}

func runPair(c *cli.Context) error {
	central, err := blesm.ParseAddr(c.String("central"), blesm.AddrPublic)
	if err != nil {
		return errors.Wrap(err, "central address")
	}
	periph, err := blesm.ParseAddr(c.String("peripheral"), blesm.AddrRandom)
	if err != nil {
		return errors.Wrap(err, "peripheral address")
	}

	authReq := smp.AuthReqBond
	if c.Bool("no-bond") {
		authReq = smp.AuthReqNoBond
	}
	if c.Bool("mitm") {
		authReq |= smp.AuthReqMitm
	}
	if c.Bool("sc") {
		authReq |= smp.AuthReqSC
	}

	loop, err := runloop.New(runloop.WithLogger(blesm.ComponentLogger("smptool")))
	if err != nil {
		return err
	}
	defer loop.Close()

	var centralStore hci.BondManager = bond.NewMemoryStore(0)
	if path := c.String("bond-file"); path != "" {
		centralStore = bond.NewFileStore(path)
	}

	link := hci.NewSoftLink(loop, simCentralHandle, simPeripheralHandle)
	sim := &simulation{loop: loop, passkey: c.Int("passkey"), reject: c.Bool("reject")}

	sim.devs[0], err = sim.newDevice("central", link.Central(), smp.Initiator, central, periph,
		blesm.OptEnableSecurity(centralStore),
		blesm.OptIOCapability(byte(c.Int("init-io"))),
		blesm.OptAuthRequirements(authReq))
	if err != nil {
		return errors.Wrap(err, "central")
	}
	sim.devs[1], err = sim.newDevice("peripheral", link.Peripheral(), smp.Responder, periph, central,
		blesm.OptEnableSecurity(bond.NewMemoryStore(0)),
		blesm.OptIOCapability(byte(c.Int("resp-io"))),
		blesm.OptAuthRequirements(authReq))
	if err != nil {
		return errors.Wrap(err, "peripheral")
	}

	for _, d := range sim.devs {
		d.host.Connected(d.handle, d.role, d.local, d.peer)
	}
	if err := sim.devs[0].host.Pair(simCentralHandle); err != nil {
		return errors.Wrap(err, "pair")
	}

	if err := sim.run(c.Duration("timeout")); err != nil {
		return err
	}
	return sim.report()
}

func (s *simulation) newDevice(name string, end *hci.SoftLinkEnd, role smp.Role, local, peer blesm.Addr, opts ...blesm.Option) (*simDevice, error) {
	ctrl := hci.NewSoftController(s.loop)
	h, err := smp.NewHost(s.loop, end, end, hci.NewCryptoProxy(ctrl), opts...)
	if err != nil {
		return nil, err
	}

	d := &simDevice{name: name, host: h, handle: end.Handle(), local: local, peer: peer, role: role}
	ctrl.SetEventHandler(h.HandleHCIEvent)
	end.SetHandlers(h.HandleHCIEvent, func(handle uint16, b []byte) {
		if err := h.HandleL2CAP(handle, b); err != nil {
			fmt.Fprintf(out, "%-10s l2cap: %v\n", name, err)
		}
	})
	h.SetPhaseHandler(func(handle uint16, from, to smp.Phase) {
		fmt.Fprintf(out, "%-10s %v -> %v\n", name, from, to)
	})
	h.SetEventHandler(func(ev smp.Event) {
		s.onEvent(d, ev)
	})
	return d, nil
}

func (s *simulation) onEvent(d *simDevice, ev smp.Event) {
	switch e := ev.(type) {
	case smp.PasskeyDisplay:
		fmt.Fprintf(out, "%-10s display passkey %06d\n", d.name, e.Passkey)
		v := e.Passkey
		d.shown = &v
	case smp.PasskeyInput:
		fmt.Fprintf(out, "%-10s passkey input requested\n", d.name)
		d.todo = append(d.todo, ev)
	case smp.NumericComparisonRequest:
		fmt.Fprintf(out, "%-10s compare %06d\n", d.name, e.Value)
		d.todo = append(d.todo, ev)
	case smp.EncryptionChanged:
		fmt.Fprintf(out, "%-10s encryption enabled=%v status=0x%02x\n", d.name, e.Enabled, e.Status)
	case smp.PairingComplete, smp.PairingFailed:
		d.result = ev
	}
}

func (s *simulation) other(d *simDevice) *simDevice {
	if d == s.devs[0] {
		return s.devs[1]
	}
	return s.devs[0]
}

// answer plays the user of both devices and reports whether it replied to anything.
func (s *simulation) answer() (bool, error) {
	progress := false
	for _, d := range s.devs {
		var keep []smp.Event
		for _, ev := range d.todo {
			var err error
			switch ev.(type) {
			case smp.PasskeyInput:
				var passkey uint32
				switch shown := s.other(d).shown; {
				case s.passkey >= 0:
					passkey = uint32(s.passkey)
				case shown != nil:
					passkey = *shown
				default:
					keep = append(keep, ev)
					continue
				}
				fmt.Fprintf(out, "%-10s types %06d\n", d.name, passkey)
				err = d.host.PasskeyReply(d.handle, passkey, true)
			case smp.NumericComparisonRequest:
				err = d.host.ConfirmReply(d.handle, !s.reject)
			}
			if err != nil && errors.Cause(err) != smp.ErrNotWaiting {
				return false, errors.Wrap(err, d.name)
			}
			progress = true
		}
		d.todo = keep
	}
	return progress, nil
}

func (s *simulation) done() bool {
	return s.devs[0].result != nil && s.devs[1].result != nil
}

func (s *simulation) run(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !s.done() {
		if time.Now().After(deadline) {
			return errors.New("simulation timed out")
		}
		if s.loop.RunPending() > 0 {
			continue
		}
		answered, err := s.answer()
		if err != nil {
			return err
		}
		if answered {
			continue
		}
		if err := s.loop.Poll(100 * time.Millisecond); err != nil {
			return err
		}
	}
	// drain the bond writes and trailing notifications
	s.loop.RunPending()
	return nil
}

func (s *simulation) report() error {
	var failed error
	for _, d := range s.devs {
		switch r := d.result.(type) {
		case smp.PairingComplete:
			fmt.Fprintf(out, "%-10s paired: method=%v authenticated=%v sc=%v bonded=%v key size=%d peer=%v\n",
				d.name, r.Method, r.Authenticated, r.SecureConnections, r.Bonded, r.KeySize, r.Peer)
			if b, err := d.host.Bonds().Find(r.Peer); err == nil {
				fmt.Fprintf(out, "%-10s bond keys=%s\n", d.name, keyFlags(b.Keys))
			}
		case smp.PairingFailed:
			fmt.Fprintf(out, "%-10s failed: reason=%v remote=%v err=%v\n", d.name, r.Reason, r.Remote, r.Err)
			failed = errors.Errorf("pairing failed on %s", d.name)
		}
	}
	return failed
}
