// Command synchrony computes synchronization likelihood between the channels
// of multichannel recordings.
//
// Usage:
//
//	synchrony matrix recording.wav -o bsl.txt
//	synchrony matrix eeg.csv --exclude EOG,ECG --start 10 --end 70 --show
//	synchrony channels eeg.csv
//	synchrony thresholds eeg.csv --channel 3 --every 8
//	synchrony synth test.wav --channels 8 --coupled 3
//
// Recordings are read from WAV files, openViBE CSV exports or plain text
// matrices with one row per channel (these need --rate).
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tphakala/go-synchrony/internal/config"
)

const (
	progressInterval = 10 // Log progress every N%
	percentScale     = 100

	// Plot geometry
	plotHeight = 12
	plotWidth  = 80

	// Synthetic recording defaults
	defaultSynthChannels = 4
	defaultSynthRate     = 256
	defaultSynthSeconds  = 10.0
	defaultSynthFreq     = 10.0
	defaultSynthCoupled  = 2
)

// app holds state shared by all subcommands.
type app struct {
	log        *logrus.Logger
	configFile string
	saveConfig string
	verbose    bool
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{log: logrus.New()}
	err := a.rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		a.log.Fatal(err)
	}
}

func (a *app) rootCommand() *cobra.Command {
	var (
		workers  int
		parallel bool
	)

	root := &cobra.Command{
		Use:           "synchrony",
		Short:         "synchronization likelihood between recording channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				a.log.SetLevel(logrus.DebugLevel)
			}
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Engine.Workers = workers
			}
			if flags.Changed("parallel") {
				cfg.Engine.Parallel = parallel
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&a.saveConfig, "save-config", "", "write the resolved configuration to this file (yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.IntVar(&workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	pf.BoolVar(&parallel, "parallel", true, "compute channels and matrix rows concurrently")

	root.AddCommand(
		a.matrixCommand(),
		a.channelsCommand(),
		a.thresholdsCommand(),
		a.synthCommand(),
	)
	return root
}
