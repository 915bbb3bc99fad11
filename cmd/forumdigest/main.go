package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/database"
	"github.com/TobiSchelling/forumdigest/internal/pipeline"
	"github.com/TobiSchelling/forumdigest/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "forumdigest",
	Short:   "Daily forum digests by email",
	Long:    "forumdigest lists the top entries of a forum, summarizes or filters them with a language model, and mails the result.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		config.LoadDotEnv()

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Debug() {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("forumdigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/forumdigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set GEMINI_API_KEY and the DIGEST_* mail variables in your environment or a .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  LLM provider: %s (%s)\n", cfg.Summarization.Provider, cfg.Summarization.Model)
		if cfg.APIKey() == "" && cfg.Summarization.Provider != "ollama" {
			fmt.Printf("  API key: %s not set, summaries fall back to truncation\n", cfg.Summarization.APIKeyEnv)
		}
		secrets, err := config.LoadSecrets()
		if err != nil {
			return err
		}
		if err := secrets.MailConfigured(); err != nil {
			fmt.Printf("  Email: %v\n", err)
		} else {
			fmt.Printf("  Email: %s via %s:%d\n", strings.Join(secrets.Recipients(), ", "), cfg.Email.Host, cfg.Email.Port)
		}

		fmt.Println("\nDigests:")
		for _, d := range cfg.Digests {
			last, err := db.GetLastRun(d.Name)
			if err != nil {
				return err
			}
			lastRun := "never"
			if last != nil {
				lastRun = fmt.Sprintf("%s (%s, %d kept)", database.FormatTimestamp(last.StartedAt), last.Status, last.Succeeded)
			}
			fmt.Printf("  %-10s %-9s last run: %s\n", d.Name, d.Policy, lastRun)
		}

		fmt.Println("\nArchive:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Emails sent: %d\n", stats.EmailsSent)
		fmt.Printf("  Entries summarized: %d\n", stats.ItemsKept)
		fmt.Printf("  Entries filtered out: %d\n", stats.ItemsDropped)
		fmt.Printf("  Entries unavailable: %d\n", stats.ItemsUnavailable)
		return nil
	},
}

// --- run command ---

var (
	dryRun  bool
	noEmail bool
)

var runCmd = &cobra.Command{
	Use:   "run [digest...]",
	Short: "Run digests: list -> fetch -> summarize -> report -> email",
	RunE: func(cmd *cobra.Command, args []string) error {
		digests, err := pipeline.SelectDigests(cfg, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if dryRun {
			for _, d := range digests {
				p, err := pipeline.Build(cfg, d, nil, nil, nil)
				if err != nil {
					return err
				}
				r := p.DryRun(ctx)
				p.Close()
				printResult(r)
				for i, e := range r.Entries {
					fmt.Printf("  %2d. %s\n      %s\n", i+1, e.Title, e.Link)
				}
			}
			return nil
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		secrets, err := config.LoadSecrets()
		if err != nil {
			return err
		}
		notifier := pipeline.NotifierFor(cfg, secrets)
		if noEmail {
			notifier = nil
		}

		results := pipeline.RunAll(ctx, cfg, digests, pipeline.ProviderFor(cfg), notifier, db, pipeline.Options{NoEmail: noEmail})
		for _, r := range results {
			printResult(r)
			if noEmail && r.Message != nil {
				printMessage(r)
			}
		}

		fmt.Println("\nDone. Run 'forumdigest serve' to browse archived runs.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List entries without fetching, summarizing or sending")
	runCmd.Flags().BoolVar(&noEmail, "no-email", false, "Print the report instead of emailing it")
}

// --- preview command ---

var previewCmd = &cobra.Command{
	Use:   "preview <digest>",
	Short: "Run a digest and print the report without sending or archiving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digests, err := pipeline.SelectDigests(cfg, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.Build(cfg, digests[0], pipeline.ProviderFor(cfg), nil, nil)
		if err != nil {
			return err
		}
		defer p.Close()
		r := p.Run(ctx, pipeline.Options{NoEmail: true})
		printResult(r)
		if r.Message == nil {
			fmt.Println("\nNothing to report.")
			return nil
		}
		printMessage(r)
		return nil
	},
}

// --- history command ---

var (
	historyDigest string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRecentRuns(historyDigest, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs archived yet. Start one with: forumdigest run")
			return nil
		}

		for _, r := range runs {
			mail := "-"
			switch {
			case r.EmailSent:
				mail = "sent"
			case r.EmailError != nil:
				mail = "failed"
			}
			fmt.Printf("  [%d] %s  %-10s %-9s listed %2d, kept %2d, dropped %2d, unavailable %2d, email %s\n",
				r.ID, database.FormatTimestamp(r.StartedAt), r.Digest, r.Status,
				r.Listed, r.Succeeded, r.Dropped, r.Unavailable, mail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyDigest, "digest", "d", "", "Only show runs of this digest")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func printResult(r *pipeline.Result) {
	fmt.Printf("\nDigest %s\n", r.Digest)
	for i, step := range r.Steps {
		fmt.Printf("  Step %d/%d: %s\n", i+1, len(r.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("    Error: %v\n", step.Err)
		} else {
			fmt.Printf("    %s\n", step.Summary)
		}
	}
}

func printMessage(r *pipeline.Result) {
	fmt.Printf("\nSubject: %s\n\n%s", r.Message.Subject, r.Message.Plain)
}

func openDB() (*database.DB, error) {
	return database.Open(database.PathIn(cfg.GetDataDir()))
}
