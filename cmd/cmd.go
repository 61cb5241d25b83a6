// Package cmd is the CLI bootstrap for the forwarding daemon.
package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ndn-go/fw/core"
)

var config = core.DefaultConfig()

// CmdNdnfwd is the root command: run the daemon against a YAML config file.
var CmdNdnfwd = &cobra.Command{
	Use:   "ndnfwd [CONFIG-FILE]",
	Short: "NDN forwarding daemon",
	Args:  cobra.MaximumNArgs(1),
	Run:   run,
}

func init() {
	CmdNdnfwd.Flags().StringVar(&config.Core.CPUProfile, "cpu-profile", "", "Write CPU profile to file")
	CmdNdnfwd.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "Write memory profile to file")
}

func run(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		configFile := args[0]
		config.Core.BaseDir = filepath.Dir(configFile)
		if err := core.ReadYamlConfig(config, configFile); err != nil {
			core.Log.Fatal(daemonStringer{}, "Unable to read configuration", "file", configFile, "err", err)
		}
	}
	if level, err := core.ParseLevel(config.Core.LogLevel); err == nil {
		core.Log.SetLevel(level)
	}

	daemon := NewDaemon(config)
	if err := daemon.Start(); err != nil {
		core.Log.Fatal(daemon, "Unable to start daemon", "err", err)
	}

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
	receivedSig := <-sigChannel
	core.Log.Info(daemon, "Received signal - exit", "signal", receivedSig)

	daemon.Stop()
}

type daemonStringer struct{}

func (daemonStringer) String() string { return "daemon" }
