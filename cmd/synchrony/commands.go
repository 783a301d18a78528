package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	synchrony "github.com/tphakala/go-synchrony"
	"github.com/tphakala/go-synchrony/internal/config"
)

// runFlags are the analysis flags shared by matrix, channels and thresholds.
// Flags override values from the config file only when set.
type runFlags struct {
	rate     float64
	exclude  []string
	start    float64
	end      float64
	dim      int
	lag      int
	pref     float64
	stride   int
	w2       int
	step     float64
	maxSteps int64
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.rate, "rate", 0, "sample rate in Hz (plain text recordings)")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "channel labels to leave out")
	fs.Float64Var(&f.start, "start", 0, "start time in seconds")
	fs.Float64Var(&f.end, "end", 0, "end time in seconds (0 = end of recording)")
	fs.IntVar(&f.dim, "dim", synchrony.DefaultDimension, "embedding dimension")
	fs.IntVar(&f.lag, "lag", synchrony.DefaultLag, "embedding lag in samples")
	fs.Float64Var(&f.pref, "pref", synchrony.DefaultPRef, "reference probability")
	fs.IntVar(&f.stride, "stride", synchrony.DefaultStride, "position subsampling stride")
	fs.IntVar(&f.w2, "w2", 0, "outer window bound in samples (0 = half the sample rate)")
	fs.Float64Var(&f.step, "step", synchrony.DefaultStep, "threshold search step")
	fs.Int64Var(&f.maxSteps, "max-steps", synchrony.DefaultMaxSteps, "threshold search step cap")
}

func (f *runFlags) apply(cmd *cobra.Command, a *app) {
	fs := cmd.Flags()
	in, eng := &a.cfg.Input, &a.cfg.Engine
	if fs.Changed("rate") {
		in.Rate = f.rate
	}
	if fs.Changed("exclude") {
		in.Exclude = f.exclude
	}
	if fs.Changed("start") {
		in.Start = f.start
	}
	if fs.Changed("end") {
		in.End = f.end
	}
	if fs.Changed("dim") {
		eng.Dimension = f.dim
	}
	if fs.Changed("lag") {
		eng.Lag = f.lag
	}
	if fs.Changed("pref") {
		eng.PRef = f.pref
	}
	if fs.Changed("stride") {
		eng.Stride = f.stride
	}
	if fs.Changed("w2") {
		eng.W2 = f.w2
	}
	if fs.Changed("step") {
		eng.Step = f.step
	}
	if fs.Changed("max-steps") {
		eng.MaxSteps = f.maxSteps
	}
}

// prepare loads, trims and crops the recording and builds an engine for it.
func (a *app) prepare(cmd *cobra.Command, f *runFlags, path string) (*synchrony.Engine, error) {
	f.apply(cmd, a)
	if a.saveConfig != "" {
		if err := config.Save(a.saveConfig, a.cfg); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
		a.log.WithField("path", a.saveConfig).Info("configuration saved")
	}

	rec, err := loadRecording(path, a.cfg.Input.Rate)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Input.Exclude) > 0 {
		if rec, err = rec.Exclude(a.cfg.Input.Exclude...); err != nil {
			return nil, err
		}
	}
	if a.cfg.Input.Start > 0 || a.cfg.Input.End > 0 {
		if rec, err = rec.Crop(a.cfg.Input.Start, a.cfg.Input.End); err != nil {
			return nil, err
		}
	}

	cfg, err := a.cfg.LibraryConfig()
	if err != nil {
		return nil, err
	}
	cfg.Progress = newProgressTracker(a.log).report

	e, err := synchrony.New(rec, cfg)
	if err != nil {
		return nil, err
	}

	w := e.Window()
	a.log.WithFields(logrus.Fields{
		"input":     path,
		"channels":  rec.Channels(),
		"samples":   rec.Samples(),
		"rate":      rec.SampleRate(),
		"w1":        w.W1,
		"w2":        w.W2,
		"positions": len(e.Positions()),
	}).Info("recording loaded")
	return e, nil
}

// poisonedWarning logs exhausted threshold searches and clears the error so
// the partial result is still written.
func (a *app) poisonedWarning(err error) error {
	var pe *synchrony.PoisonedError
	if !errors.As(err, &pe) {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"cells":    len(pe.Cells),
		"searches": len(pe.Causes),
	}).Warnf("exhausted threshold searches, affected values are nan: %v", pe.Causes[0])
	return nil
}

func (a *app) matrixCommand() *cobra.Command {
	var (
		flags     runFlags
		output    string
		precision int
		delimiter string
		show      bool
	)

	cmd := &cobra.Command{
		Use:   "matrix <input>",
		Short: "compute the pairwise likelihood matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("precision") {
				a.cfg.Output.Precision = precision
			}
			if cmd.Flags().Changed("delimiter") {
				a.cfg.Output.Delimiter = delimiter
			}
			e, err := a.prepare(cmd, &flags, args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			m, err := e.PairwiseMatrix(cmd.Context())
			if m == nil {
				return err
			}
			if err := a.poisonedWarning(err); err != nil {
				return err
			}
			a.log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("matrix computed")

			if err := writeOutput(output, cmd.OutOrStdout(), func(w io.Writer) error {
				return synchrony.WriteMatrix(w, m, a.cfg.TextOptions()...)
			}); err != nil {
				return err
			}
			if show {
				fmt.Fprintln(cmd.OutOrStdout(), renderHeatmap(m, e.Recording().Labels()))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&precision, "precision", 0, "decimals per value")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter")
	cmd.Flags().BoolVar(&show, "show", false, "render the matrix as a heatmap")
	return cmd
}

func (a *app) channelsCommand() *cobra.Command {
	var (
		flags  runFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "channels <input>",
		Short: "compute the likelihood of each channel with all others",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.prepare(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			sl, err := e.ChannelLikelihoods(cmd.Context())
			if sl == nil {
				return err
			}
			if err := a.poisonedWarning(err); err != nil {
				return err
			}

			if output != "" {
				return writeOutput(output, nil, func(w io.Writer) error {
					return synchrony.WriteVector(w, sl, a.cfg.TextOptions()...)
				})
			}

			out := cmd.OutOrStdout()
			if err := writeLikelihoodTable(out, e.Recording().Labels(), sl); err != nil {
				return err
			}
			fmt.Fprintln(out, plotSeries(sl, "synchronization likelihood per channel"))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write values to file instead of printing")
	return cmd
}

func (a *app) thresholdsCommand() *cobra.Command {
	var (
		flags   runFlags
		channel int
		every   int
	)

	cmd := &cobra.Command{
		Use:   "thresholds <input>",
		Short: "plot the recurrence threshold of one channel over time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if every < 1 {
				return fmt.Errorf("--every must be at least 1, got %d", every)
			}
			e, err := a.prepare(cmd, &flags, args[0])
			if err != nil {
				return err
			}
			if channel < 0 || channel >= e.Recording().Channels() {
				return fmt.Errorf("channel %d not in [0, %d)", channel, e.Recording().Channels())
			}

			lo, hi := e.ValidRange()
			values := make([]float64, 0, (hi-lo)/every+1)
			exhausted := 0
			for n := lo; n < hi; n += every {
				eps, err := e.Threshold(cmd.Context(), channel, n)
				if errors.Is(err, synchrony.ErrThresholdSearchExhausted) {
					exhausted++
					continue
				}
				if err != nil {
					return err
				}
				values = append(values, eps)
			}
			if exhausted > 0 {
				a.log.WithField("positions", exhausted).Warn("threshold search exhausted, positions skipped")
			}
			if len(values) == 0 {
				return errors.New("no thresholds to plot")
			}

			label := e.Recording().Labels()[channel]
			out := cmd.OutOrStdout()
			mean, std := stat.MeanStdDev(values, nil)
			fmt.Fprintf(out, "%s: %d positions, min %.6f, max %.6f, mean %.6f, std %.6f\n",
				label, len(values), floats.Min(values), floats.Max(values), mean, std)
			fmt.Fprintln(out, plotSeries(values, fmt.Sprintf("threshold of %s every %d samples", label, every)))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&channel, "channel", 0, "channel index")
	cmd.Flags().IntVar(&every, "every", 1, "sample every N-th position")
	return cmd
}

// writeOutput calls write with the named file, or with stdout when path is empty.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(f)
}

func writeLikelihoodTable(w io.Writer, labels []string, sl []float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSL")
	for k, v := range sl {
		fmt.Fprintf(tw, "%s\t%.6f\n", labels[k], v)
	}
	finite := make([]float64, 0, len(sl))
	for _, v := range sl {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) > 0 {
		mean, std := stat.MeanStdDev(finite, nil)
		fmt.Fprintf(tw, "mean\t%.6f\nstd\t%.6f\n", mean, std)
	}
	return tw.Flush()
}

func plotSeries(data []float64, caption string) string {
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	)
}

// progressTracker logs engine progress at debug level.
type progressTracker struct {
	log  *logrus.Logger
	mu   sync.Mutex
	last map[string]int
}

func newProgressTracker(log *logrus.Logger) *progressTracker {
	return &progressTracker{log: log, last: make(map[string]int)}
}

// report logs when a stage crosses the next progress interval.
func (p *progressTracker) report(pr synchrony.Progress) {
	if pr.Total == 0 {
		return
	}
	progress := pr.Done * percentScale / pr.Total

	p.mu.Lock()
	defer p.mu.Unlock()
	last, seen := p.last[pr.Stage]
	if seen && progress < last+progressInterval {
		return
	}
	p.last[pr.Stage] = progress
	p.log.WithField("stage", pr.Stage).Debugf("Progress: %d%%", progress)
}
