package main

import (
	"io"
	"time"

	"github.com/banshee-data/blockworld/internal/version"
	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "blockworld-replay",
		Short:        "Replay scripted robot sessions through the BlockWorld model",
		Version:      version.String(),
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(newRunCmd(), newRunsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run --scenario FILE",
		Short: "Replay a scenario and report what the world ended up believing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.scenario, "scenario", "", "scenario YAML file")
	f.StringVar(&o.tuning, "tuning", "", "tuning JSON file (default: config/tuning.defaults.json)")
	f.StringVar(&o.runName, "name", "", "run name stored in the event log (default: the scenario name)")
	f.StringVar(&o.dbPath, "db", "", "SQLite event log to append the run to")
	f.StringVar(&o.pngDir, "png-dir", "", "directory for per-tick PNG renders")
	f.StringVar(&o.htmlPath, "html", "", "interactive HTML page of the latest tick")
	f.IntVar(&o.every, "every", 1, "render every Nth tick")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&o.hold, "hold", false, "keep serving metrics after the replay until interrupted")
	f.DurationVar(&o.pace, "pace", 0, "wall-clock time per step (0 replays flat out)")
	f.BoolVar(&o.mapMemory, "map-memory", false, "enable memory maps regardless of tuning")
	f.BoolVar(&o.dev, "dev", false, "human-readable development logging")
	f.BoolVar(&o.trace, "trace", false, "log per-tick trace output")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "runs --db FILE",
		Short: "List recorded runs with their event and tick counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(dbPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite event log")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

// runOptions are the flags of the run command.
type runOptions struct {
	scenario    string
	tuning      string
	runName     string
	dbPath      string
	pngDir      string
	htmlPath    string
	every       int
	metricsAddr string
	hold        bool
	pace        time.Duration
	mapMemory   bool
	dev         bool
	trace       bool
}
