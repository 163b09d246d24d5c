// Package main is the entry point for the buddy CLI, a bilingual wellness
// companion that watches emotional patterns across check-ins and raises
// escalating distress alerts.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/buddy/internal/config"
	"github.com/normanking/buddy/internal/logging"
	"github.com/normanking/buddy/internal/profile"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "buddy",
		Short: "Buddy - a bilingual emotional wellness companion",
		Long: `Buddy listens to short check-ins in English, Tamil or Tanglish, tracks
emotional patterns across a session and raises escalating alerts with
helpline resources when distress is sustained.

Start a check-in:        buddy chat --user priya
Weekly summary:          buddy summary --user priya
Serve the HTTP API:      buddy serve
Configuration:           buddy config show`,
		SilenceUsage:       true,
		PersistentPreRunE:  initRuntime,
		PersistentPostRunE: closeRuntime,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.buddy/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Buddy v%s\n", version)
		},
	})

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(sayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// RUNTIME INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initRuntime(cmd *cobra.Command, args []string) error {
	initStyles(noColor)

	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	loaded, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	logCfg := logging.Config{
		Level:   cfg.Logging.Level,
		Verbose: verbose,
		// the chat prompt owns the terminal
		Quiet:   cmd.Name() == "chat" && !verbose,
		NoColor: noColor,
	}
	if cfg.Logging.File {
		logCfg.FileDir = cfg.Logging.Dir
	}
	logger = logging.Setup(logCfg)

	log.Debug().Str("config", path).Str("command", cmd.CommandPath()).Msg("buddy started")
	return nil
}

func closeRuntime(cmd *cobra.Command, args []string) error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration (passphrase redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cfg.Redacted().YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			fmt.Println(config.DefaultPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check configuration values against their allowed ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Configuration is valid."))
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// SCHEMA COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas of stored documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "snapshot",
		Short: "Print the JSON schema of a history snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := profile.SnapshotSchema()
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	})
	return cmd
}
