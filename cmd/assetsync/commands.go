package main

import (
	"context"
	"encoding/json"
	"fmt"

	"assetsync/internal/app"
	"assetsync/internal/config"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/ui"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	runMenu := func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), opts, []app.Option{app.WithProgressBar(true)}, func(ctx context.Context, a *app.App) error {
			return a.RunMenu(ctx)
		})
	}

	root := &cobra.Command{
		Use:           "assetsync",
		Short:         "Keep downloadable content and application code up to date",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMenu,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log format (color, text, json)")

	root.AddCommand(
		&cobra.Command{
			Use:   "menu",
			Short: "Show the interactive menu",
			Args:  cobra.NoArgs,
			RunE:  runMenu,
		},
		newCheckCommand(opts),
		newDownloadCommand(opts),
		newStatusCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var (
		silent bool
		class  string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check remote manifests and report pending updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, nil, func(ctx context.Context, a *app.App) error {
				var count int
				if class == "" {
					count = a.Updater().CheckForUpdates(ctx, silent)
				} else {
					c, ok := a.Updater().Class(manifest.Class(class))
					if !ok {
						return fmt.Errorf("unknown or disabled class %q", class)
					}
					count = c.CheckForUpdates(ctx, silent)
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "suppress up-to-date and failure notices")
	cmd.Flags().StringVar(&class, "class", "", "check only one class (content or code)")
	return cmd
}

func newDownloadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Check, then download and apply every pending update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, []app.Option{app.WithProgressBar(true)}, func(ctx context.Context, a *app.App) error {
				a.Updater().ApplyStoredUpdates(ctx)
				a.Updater().CheckForUpdates(ctx, true)

				printer := ui.NewPrinter()
				failed := 0
				for _, s := range a.Updater().DownloadUpdates(ctx) {
					printer.PrintSummary(string(s.Class), s.Succeeded, s.Failed, s.RequiresReload)
					failed += len(s.Failed)
				}
				if failed > 0 {
					return fmt.Errorf("%d file(s) failed to download", failed)
				}
				return nil
			})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print stored versions and the result of a fresh check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, nil, func(ctx context.Context, a *app.App) error {
				a.Updater().ApplyStoredUpdates(ctx)
				a.Updater().CheckForUpdates(ctx, true)
				states := a.Updater().State()

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(states)
				}
				printer := ui.NewPrinterTo(cmd.OutOrStdout(), false)
				for _, st := range states {
					printer.PrintState(st)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print state as JSON")
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var download bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run periodic passive checks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, []app.Option{app.WithAutoDownload(download)}, func(ctx context.Context, a *app.App) error {
				return a.Watch(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "download updates found by passive checks")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildVersion)
		},
	}
}

func withApp(ctx context.Context, opts *rootOptions, extra []app.Option, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}

	log := app.NewLogger(cfg.Log, nil)
	log.Debug("Loaded configuration (log level %s)", logger.ParseLevel(cfg.Log.Level))

	a, err := app.New(ctx, cfg, log, append(extra, app.WithVersion(buildVersion))...)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
