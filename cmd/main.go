package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deploystore/deploystore-go/deploystore"
	"github.com/deploystore/deploystore-go/deploystore/diaglog"
	"github.com/deploystore/deploystore-go/deploystore/env"
	"github.com/deploystore/deploystore-go/deploystore/logger"
)

type cli struct {
	configPath string
	project    string
	data       string
	mode       string
	verbose    bool

	console  *zap.Logger
	resolver env.Resolver
	opts     deploystore.Options
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "deploystore",
		Short: "Inspect and unpack deployment saves",
		Long: `deploystore manages objects saved with the deploystore library.

In authoring mode it reads the project tree; in packaged mode it reads the
bundled resources and the writable data directory.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync(c.console)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file")
	flags.StringVar(&c.project, "project", "", "project (or bundle) root; defaults to $"+env.EnvProjectRoot+" or the working directory")
	flags.StringVar(&c.data, "data", "", "writable data root; defaults to $"+env.EnvDataRoot+" or the user config directory")
	flags.StringVar(&c.mode, "mode", "", "authoring, packaged or auto")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Read or clear the diagnostic log",
	}
	logCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print every diagnostic log entry with its severity",
			Args:  cobra.NoArgs,
			RunE:  c.runLogShow,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Truncate the diagnostic log",
			Args:  cobra.NoArgs,
			RunE:  c.runLogClear,
		},
	)

	root.AddCommand(
		&cobra.Command{
			Use:   "unpack",
			Short: "Copy bundled persistent saves into the writable data root",
			Args:  cobra.NoArgs,
			RunE:  c.runUnpack,
		},
		&cobra.Command{
			Use:   "manifest",
			Short: "Print the names recorded in the tracker, one per line",
			Args:  cobra.NoArgs,
			RunE:  c.runManifest,
		},
		logCmd,
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	mode, ok := env.ParseMode(c.mode)
	if !ok {
		return fmt.Errorf("unknown mode %q; expected authoring, packaged or auto", c.mode)
	}
	c.resolver = env.OS{Mode: mode, Project: c.project, Data: c.data}

	var err error
	c.console, err = logger.NewConsole(c.verbose)
	if err != nil {
		return fmt.Errorf("while building console logger: %w", err)
	}

	c.opts = deploystore.DefaultOptions()
	if c.configPath != "" {
		if c.opts, err = deploystore.LoadOptions(c.configPath); err != nil {
			return err
		}
	}
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.opts.Log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	c.opts.Console = c.console
	c.opts.AutoUnpack = false
	return nil
}

func (c *cli) open() (*deploystore.Store, error) {
	return deploystore.OpenWithOptions(c.resolver, c.opts)
}

func (c *cli) diag() *diaglog.Log {
	return diaglog.New(diaglog.Config{
		Path:        diaglog.DefaultPath(c.resolver.WritableDataRoot(), c.opts.LogFileName),
		WriteToFile: true,
		Console:     c.console,
	})
}

func (c *cli) runUnpack(cmd *cobra.Command, _ []string) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	report, err := s.Unpack(context.Background())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range report.Copied {
		fmt.Fprintf(out, "copied %s\n", name)
	}
	for _, name := range report.Kept {
		fmt.Fprintf(out, "kept   %s\n", name)
	}
	if report.Warnings != nil {
		var warn interface{ Len() int }
		if errors.As(report.Warnings, &warn) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d names could not be unpacked:\n", warn.Len())
		}
		fmt.Fprintln(cmd.ErrOrStderr(), report.Warnings)
	}
	return nil
}

func (c *cli) runManifest(cmd *cobra.Command, _ []string) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	names, err := s.PersistentNames(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func (c *cli) runLogShow(cmd *cobra.Command, _ []string) error {
	records, err := c.diag().ParseRecords()
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", r.Severity, r.Message)
	}
	return nil
}

func (c *cli) runLogClear(cmd *cobra.Command, _ []string) error {
	d := c.diag()
	if err := d.Clear(); err != nil {
		return err
	}
	c.console.Debug("cleared diagnostic log", zap.String("path", d.Path()))
	return nil
}
