// prism is the reproduction control-plane CLI: run, status, respond,
// analyze, compare, list, serve.
//
// Usage:
//
//	prism run <plan.yaml>
//	prism status <run-id>
//	prism respond <run-id> <answer...>
//	prism analyze <run-id> <stage-id>
//	prism compare <simulated> <reference>
//	prism list
//	prism serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"prism/internal/config"
	"prism/internal/logging"
	"prism/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Control plane for reproducing paper figures from simulation output",
	Long: "Prism drives a staged reproduction workflow: it schedules stages,\n" +
		"compares simulated curves against digitized paper figures, keeps an\n" +
		"append-only discrepancy ledger, and pauses for a human whenever a\n" +
		"decision cannot be made automatically.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if rootFlags.logLevel != "" {
			level = rootFlags.logLevel
		}
		logging.Init(logging.ParseLevel(level), cfg.Logging.Format)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to prism config YAML (default: compiled defaults)")
	pf.StringVar(&rootFlags.dbPath, "db", "", "Run store DB path (default: "+store.DefaultDBPath+")")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadConfig resolves the effective config: the file named by --config
// overlaid on compiled defaults.
func loadConfig() (config.Config, error) {
	if rootFlags.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(rootFlags.configPath)
}

// openStore resolves the DB path (flag, then config, then default) and opens
// the SQLite run store.
func openStore(cfg config.Config) (store.Store, error) {
	path := rootFlags.dbPath
	if path == "" {
		path = cfg.StorePath
	}
	if path == "" {
		path = store.DefaultDBPath
	}
	return store.Open(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
