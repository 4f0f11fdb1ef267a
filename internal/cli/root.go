package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "repovault",
	Short: "Back up your GitHub and GitLab repositories into one local tree",
	Long: `repovault clones every repository you own, collaborate on, or have starred
on GitHub and GitLab into one directory tree, and fast-forwards the clones
on later runs.

Destinations mirror their origin: <root>/<host>/<owner>/<name>. Clones with
local modifications or diverged history are reported and left alone; fixing
them is your call, never the tool's.

Examples:
	# First run: write a config skeleton, then fill in root and api keys
	repovault --example-config > ~/.repovault.toml

	# Back up everything the config names
	repovault

	# See what would be synced, without touching the disk
	repovault --dry-run -v

	# Machine-readable run report alongside the console output
	repovault --report backup.ndjson

	# Print build info
	repovault version`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if code := runBackup(cmd); code != 0 {
			os.Exit(code)
		}
	},
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}
