package main

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/packetcap/pcapkit/internal/config"
	"github.com/packetcap/pcapkit/internal/logging"
)

// app state shared by the subcommands of one invocation
type app struct {
	configFile string
	debug      bool
	cfg        *config.Config
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "pcapkit",
		Short:        "Compile packet filters, look up link types and replay pcap files",
		Long:         `Compile pcap-filter(7) expressions into classic BPF, look up link-layer header types and replay pcap files through a filter`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file, YAML; settings may also come from PCAPKIT_ environment variables")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "print lots of debugging messages")

	cmd.AddCommand(newCompileCmd(a), newLinkTypeCmd(), newReplayCmd(a))
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = log.DebugLevel.String()
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.logCloser = cfg, closer
	log.WithField("config", a.configFile).Debug("loaded configuration")
	return nil
}
