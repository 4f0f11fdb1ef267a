package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"repovault/internal/config"
	"repovault/internal/driver"
	"repovault/internal/flags"
	"repovault/internal/gitsync"
	"repovault/internal/logging"
	"repovault/internal/output"
	"repovault/internal/provider"
)

var (
	configPath    string
	verbosity     int
	dryRun        bool
	reportPath    string
	reportFormat  string
	noColor       bool
	exampleConfig bool
)

const rootHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	Provider credentials come from the config file. When an api-key is not
	set there, repovault falls back to the GITHUB_TOKEN and GITLAB_TOKEN
	environment variables. A .env file in the working directory is loaded
	first, if present.

Exit codes:
	0 = every repository synced (or nothing to do)
	1 = run completed, but some syncs or providers failed
	2 = run aborted after reaching general.error-threshold
	3 = fatal error (bad usage, unreadable config, run did not start)

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

func init() {
	rootCmd.SetHelpTemplate(rootHelpTemplate)

	rootCmd.Flags().StringVarP(&configPath, flags.FlagConfig, "c", config.DefaultPath, "Path to the TOML config file")
	rootCmd.Flags().CountVarP(&verbosity, flags.FlagVerbose, "v", "Increase log verbosity (-v info, -vv debug, -vvv adds HTTP traces)")
	rootCmd.Flags().BoolVar(&dryRun, flags.FlagDryRun, false, "Discover and filter repositories but do not touch the disk")
	rootCmd.Flags().StringVar(&reportPath, flags.FlagReport, "", "Write a structured run report to this path (.ndjson streams, .json aggregates)")
	rootCmd.Flags().StringVar(&reportFormat, flags.FlagReportFormat, "", "Report format for --report: json|ndjson (default: inferred from file extension)")
	rootCmd.Flags().BoolVar(&noColor, flags.FlagNoColor, false, "Disable colored console output")
	rootCmd.Flags().BoolVar(&exampleConfig, flags.FlagExampleConfig, false, "Print an example config file and exit")
}

// runBackup is the root command. It returns the process exit code instead of
// calling os.Exit so the 0 path unwinds normally.
func runBackup(cmd *cobra.Command) int {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	if exampleConfig {
		if err := config.Example().WriteTOML(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 3
		}
		return 0
	}

	// Load .env before the config so the token fallbacks can see it.
	_ = godotenv.Load()

	logger, err := logging.New(verbosity)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}
	if cfg.Providers() == 0 {
		logger.Warn("config names no providers; add a [github] or [gitlab] section")
	}

	providers, err := provider.FromConfig(cfg, logger,
		provider.WithHTTPTrace(logging.HTTPTrace(verbosity)))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	mgr, err := buildOutput(stdout, reportPath, reportFormat, noColor)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	var pool *gitsync.Pool
	if !dryRun {
		syncer, err := gitsync.NewSyncer(cfg.General.Root, cfg.General.SyncTimeout.Duration, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 3
		}
		pool, err = gitsync.NewPool(syncer, cfg.General.Workers, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 3
		}
	}

	d, err := driver.New(providers, pool, mgr, logger, driver.Options{
		Workers:        cfg.General.Workers,
		ErrorThreshold: cfg.General.ErrorThreshold,
		Blacklist:      cfg.General.Blacklist,
		DryRun:         dryRun,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := d.Run(ctx)
	code := res.ExitCode()
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		if code == 0 {
			code = 1
		}
	}
	if err := mgr.Close(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// buildOutput assembles the sink set: always the console, plus a report
// file when asked for.
func buildOutput(stdout io.Writer, reportPath, reportFormat string, noColor bool) (*output.Manager, error) {
	mgr := output.NewManager()
	if err := mgr.AddSink(output.NewConsoleSink(stdout, noColor)); err != nil {
		return nil, err
	}
	if reportPath != "" {
		file, err := output.NewFileSink(reportPath, reportFormat)
		if err != nil {
			return nil, err
		}
		if err := mgr.AddSink(file); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
