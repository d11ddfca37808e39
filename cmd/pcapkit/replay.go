package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/packetcap/pcapkit"
)

func newReplayCmd(a *app) *cobra.Command {
	var noOptimize bool
	cmd := &cobra.Command{
		Use:   "replay <input.pcap> <output.pcap> [expression...]",
		Short: "Copy the frames of a pcap file that match a filter to a new pcap file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out, expr := args[0], args[1], strings.Join(args[2:], " ")

			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()
			r, err := pcap.NewReader(f)
			if err != nil {
				return err
			}

			var m *pcap.Matcher
			if expr != "" {
				mask, err := parseNetmask(a.cfg.Compile.Netmask)
				if err != nil {
					return err
				}
				p, err := pcap.Compile(expr,
					pcap.WithLinkType(r.LinkType()),
					pcap.WithSnapLength(r.Snaplen()),
					pcap.WithOptimize(a.cfg.Compile.Optimize && !noOptimize),
					pcap.WithNetmask(mask),
				)
				if err != nil {
					return err
				}
				m, err = pcap.NewMatcher(p)
				// the matcher holds its own copy
				_ = p.Release()
				if err != nil {
					return err
				}
			}

			d, err := pcap.CreateDumper(out, r.LinkType(), r.Snaplen())
			if err != nil {
				return err
			}
			n, err := pcap.Replay(r, d, m)
			if cerr := d.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"input":      in,
				"output":     out,
				"expression": expr,
			}).Debug("replayed")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s frames to %s\n", color.GreenString("%d", n), out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&noOptimize, "no-optimize", "O", false, "do not run the optimizer")
	return cmd
}
