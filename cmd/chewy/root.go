package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/mpospelov/chewy"
	"github.com/mpospelov/chewy/pkg/journal"
)

var (
	verbose     bool
	configPath  string
	storeURI    string
	dumpMetrics bool

	// exitCode is returned by Execute once the command and its post-run
	// hooks are done.
	exitCode int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chewy",
	Short: "Journal and specification tooling for document indices",
	Long: `chewy keeps a journal of indexing runs and locks the definition of every
declared index, so stale indices can be detected, rebuilt and caught up.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dumpMetrics {
			writeMetrics()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: nearest chewy.yml)")
	rootCmd.PersistentFlags().StringVar(&storeURI, "store", "", "Store URI: file:///path, postgres://..., memory:// (default: $CHEWY_STORE or file://.chewy)")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "Print journal metrics to stderr when done")
}

// openClient builds a client from the global flags.
func openClient() *chewy.Client {
	path := configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path, _ = chewy.FindConfig(wd)
		}
	}

	uri := storeURI
	if uri == "" {
		uri = os.Getenv("CHEWY_STORE")
	}
	if uri == "" {
		uri = "file://.chewy"
	}

	client, err := chewy.New(uri,
		chewy.WithConfigFile(path),
		chewy.WithLogger(slog.Default()),
		chewy.WithWatcherErrorHandler(func(err error) {
			slog.Error("watcher failure", "error", err)
		}),
	)
	if err != nil {
		fatal("Error initializing chewy", err)
	}
	return client
}

func writeMetrics() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(journal.Collectors()...)
	families, err := reg.Gather()
	if err != nil {
		fatal("Error gathering metrics", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			fatal("Error writing metrics", err)
		}
	}
}
