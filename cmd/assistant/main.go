package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmc/assistant"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *assistant.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Personal research assistant: tasks, paper scan and dashboard",
	Long: `assistant keeps a task list you talk to over Telegram, scans arXiv and
Semantic Scholar every morning for papers relevant to your thesis, and
serves a small dashboard over the same SQLite file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = assistant.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger, err = assistant.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot and the daily scheduler",
	RunE:  runBot,
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the web dashboard",
	RunE:  runWeb,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the paper scan once",
	RunE:  runScan,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the morning digest, or send it with --send",
	RunE:  runDigest,
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database and seed settings from the configuration",
	RunE:  runInitDB,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the paper search index",
	RunE:  runReindex,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE:  runStats,
}

var sendDigest bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment overrides it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	digestCmd.Flags().BoolVar(&sendDigest, "send", false, "Deliver the digest over Telegram and record it")

	rootCmd.AddCommand(botCmd, webCmd, scanCmd, digestCmd, initdbCmd, reindexCmd, statsCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "assistant:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration errors to 2 and everything else to 1.
func exitCode(err error) int {
	var cerr *assistant.ConfigError
	if errors.As(err, &cerr) {
		return 2
	}
	return 1
}

// openStore opens the database and seeds missing settings keys.
func openStore(ctx context.Context) (*assistant.Store, error) {
	store, err := assistant.Open(cfg.DBPath, &assistant.StoreOptions{
		Driver: cfg.DBDriver,
		Logger: logger.Named("store"),
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSettings(ctx, cfg.Settings()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newPipeline wires both paper sources and the Gemini scorer.
func newPipeline(ctx context.Context, store *assistant.Store) (*assistant.Pipeline, error) {
	scorer, err := assistant.NewGeminiScorer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	fetchers := []assistant.PaperFetcher{
		assistant.NewArxivClient(cfg.RequestTimeout),
		assistant.NewSemanticScholarClient(cfg.SemanticScholarAPIKey, cfg.RequestTimeout),
	}
	return assistant.NewPipeline(store, fetchers, scorer, &assistant.PipelineOptions{
		Logger:         logger.Named("pipeline"),
		RequestTimeout: cfg.RequestTimeout,
	}), nil
}

// scanFunc runs the pipeline with the settings as stored at call time.
func scanFunc(store *assistant.Store, p *assistant.Pipeline) func(ctx context.Context) (*assistant.ScanResult, error) {
	return func(ctx context.Context) (*assistant.ScanResult, error) {
		st, err := store.LoadSettings(ctx, cfg.Settings())
		if err != nil {
			return nil, err
		}
		return p.ScanFromSettings(ctx, st, cfg)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateBot(); err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(ctx, store)
	if err != nil {
		return err
	}
	scan := scanFunc(store, pipeline)

	a := assistant.NewAssistant(store, &assistant.AssistantOptions{
		Logger:   logger.Named("assistant"),
		Defaults: cfg.Settings(),
		Scan:     scan,
	})
	bot, err := assistant.NewTelegramBot(cfg.TelegramToken, store, a, &assistant.TelegramOptions{
		Logger:         logger,
		ChatID:         cfg.TelegramChatID,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	sched := assistant.NewScheduler(store, &assistant.SchedulerOptions{
		Logger:   logger.Named("scheduler"),
		Defaults: cfg.Settings(),
		Scan:     scan,
		Notifier: bot,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	logger.Info("bot running", zap.String("db", store.Path()))
	return g.Wait()
}

func runWeb(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return serve(ctx, store, cfg.WebAddr)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateScan(); err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(ctx, store)
	if err != nil {
		return err
	}
	st, err := store.LoadSettings(ctx, cfg.Settings())
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, assistant.ScanOptions{
		Topic:        st.ThesisTopic,
		Keywords:     st.Keywords,
		MaxPerSource: cfg.MaxPapersPerDay,
		Threshold:    cfg.ScoreThreshold,
		MaxScored:    cfg.MaxPapersPerDay,
		Progress: func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rScoring: %d / %d", done, total)
		},
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Printf("Run:         %s\n", res.RunID)
	fmt.Printf("Fetched:     %d\n", res.Fetched)
	fmt.Printf("Duplicates:  %d\n", res.Duplicates)
	fmt.Printf("Scored:      %d\n", res.Scored)
	fmt.Printf("Accepted:    %d\n", res.Accepted)
	fmt.Printf("Rejected:    %d\n", res.Rejected)
	fmt.Printf("Failed:      %d\n", res.Failed)
	fmt.Printf("Over budget: %d\n", res.Skipped)
	for _, e := range res.SourceErrors {
		fmt.Printf("Source error: %v\n", e)
	}
	return nil
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if !sendDigest {
		d, err := assistant.NewComposer(store, &assistant.ComposerOptions{Defaults: cfg.Settings()}).Compose(ctx)
		if err != nil {
			return err
		}
		fmt.Println(d.Text())
		return nil
	}

	if cfg.TelegramToken == "" {
		return &assistant.ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "is required to send the digest"}
	}
	bot, err := assistant.NewTelegramBot(cfg.TelegramToken, store, nil, &assistant.TelegramOptions{
		Logger:         logger,
		ChatID:         cfg.TelegramChatID,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	sched := assistant.NewScheduler(store, &assistant.SchedulerOptions{
		Logger:   logger.Named("scheduler"),
		Defaults: cfg.Settings(),
		Notifier: bot,
	})
	return sched.SendDigest(ctx)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Printf("Database ready: %s (full-text search: %v)\n", store.Path(), store.HasFTS())
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.HasFTS() {
		fmt.Println("This SQLite build has no FTS5; search uses LIKE and needs no index.")
		return nil
	}
	fmt.Println("Rebuilding FTS index...")
	if err := store.RebuildFTSIndex(cmd.Context()); err != nil {
		return fmt.Errorf("reindex fts: %w", err)
	}
	fmt.Println("Done.")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	loc, err := cfg.Settings().Location()
	if err != nil {
		return err
	}
	st, err := store.CollectStats(ctx, timeNow(), loc)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("Database:       %s\n", store.Path())
	fmt.Printf("Pending tasks:  %d\n", st.PendingTasks)
	fmt.Printf("Done tasks:     %d\n", st.DoneTasks)
	fmt.Printf("Papers:         %d\n", st.TotalPapers)
	fmt.Printf("Unread papers:  %d\n", st.UnreadPapers)
	fmt.Printf("Goals:          %d\n", st.Goals)
	fmt.Printf("Reading streak: %d days\n", st.Streak)
	if !st.LastScan.IsZero() {
		fmt.Printf("Last scan:      %s\n", st.LastScan.In(loc).Format("2006-01-02 15:04"))
	}
	return nil
}
