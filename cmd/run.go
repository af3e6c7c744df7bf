package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/tharun797/deep-matchmaker/internal/ai"
	"github.com/tharun797/deep-matchmaker/internal/ai/gemini"
	"github.com/tharun797/deep-matchmaker/internal/logger"
	"github.com/tharun797/deep-matchmaker/internal/matching"
	"github.com/tharun797/deep-matchmaker/internal/notify"
	"github.com/tharun797/deep-matchmaker/internal/secrets"
	"github.com/tharun797/deep-matchmaker/internal/store"
	fs "github.com/tharun797/deep-matchmaker/internal/store/firestore"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultMatchType = "scheduled"
)

var prompt = promptui.Select{
	Label: "Start a matching run?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch matching cycle",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before starting the run")
	runCmd.Flags().Bool("dry-run", false, "evaluate matches without writing anything")
	runCmd.Flags().String("metrics-listen", "", "address to serve prometheus metrics on (default is disabled)")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the deep-matchmaker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Store == nil || config.Store.ProjectID == "" {
		logger.Fatal("firestore project id is required under store.project-id")
	}

	dryRun := cmd.Flag("dry-run").Value.String() == "true"

	if addr := cmd.Flag("metrics-listen").Value.String(); addr != "" {
		go serveMetrics(addr, logger)
	}

	st, err := fs.New(ctx, fs.Config{
		ProjectID:       config.Store.ProjectID,
		CredentialsFile: config.Store.CredentialsFile,
		PoolLabel:       config.Store.Pool,
	}, logger)
	if err != nil {
		logger.Fatal("connecting to firestore", zap.Error(err))
	}
	defer st.Close()

	completer, err := newCompleter(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("running without AI scoring", zap.Error(err))
		completer = nil
	} else {
		logger.Info("ai scoring enabled", zap.String("model", completer.Model()))
	}

	notifier := newNotifier(config.Notify, logger)

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	report, err := newOrchestrator(config, st, completer, notifier, dryRun, logger).Run(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunInProgress) {
			logger.Fatal("exiting", zap.String("reason", "another matching run is already in progress"))
		}
		logger.Fatal("matching run failed", zap.Error(err))
	}

	for _, pair := range report.Matched {
		logger.Info("matched pair",
			zap.String("profile_id", pair.ProfileID),
			zap.String("matched_id", pair.MatchedID),
		)
	}

	logger.Info("done",
		zap.String("run_id", report.RunID),
		zap.Int("eligible", report.Eligible),
		zap.Int("matched_pairs", len(report.Matched)),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("potential_matches", report.PotentialMatches),
		zap.Bool("dry_run", report.DryRun),
		zap.Duration("duration", report.Duration),
	)
}

func newOrchestrator(config *Config, st *fs.Store, completer ai.Completer, notifier matching.Notifier, dryRun bool, logger *zap.Logger) *matching.Orchestrator {
	timeout := 0 * time.Second
	maxLogLen := 0
	if config.AI != nil && config.AI.Gemini != nil {
		timeout = time.Duration(config.AI.Gemini.TimeoutSeconds) * time.Second
		maxLogLen = config.AI.Gemini.MaxLogLength
	}

	matchType := defaultMatchType
	var rnd *rand.Rand
	if config.Matching != nil {
		if config.Matching.MatchType != "" {
			matchType = config.Matching.MatchType
		}
		if config.Matching.Seed != 0 {
			rnd = rand.New(rand.NewSource(config.Matching.Seed))
		}
	}

	scorer := matching.NewScorer(completer, st, timeout, maxLogLen, logger)
	selector := matching.NewSelector(scorer, st, notifier, matchType, dryRun, logger)
	potential := matching.NewPotentialFinder(scorer, st, logger)

	return matching.NewOrchestrator(
		st,
		matching.NewResetter(st, logger),
		selector,
		potential,
		matching.NewRequeuer(st, logger),
		rnd,
		dryRun,
		logger,
	)
}

func newCompleter(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Completer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai scoring is disabled in the configuration")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai scoring is enabled")
	}

	apiKey, err := secrets.LoadFile("gemini api key", cfg.Gemini.APIKeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

func newNotifier(cfg *NotifyConfig, logger *zap.Logger) matching.Notifier {
	if cfg == nil || cfg.URL == "" {
		logger.Warn("notification endpoint is not configured, match notifications will be skipped")
		return nil
	}

	apiKey, err := secrets.LoadFile("notification api key", cfg.APIKeyFile)
	if err != nil {
		logger.Warn("loading notification api key failed, match notifications will be skipped",
			zap.Error(err),
			zap.String("hint", "set notify.api-key-file or NOTIFY_API_KEY_FILE"),
		)
		return nil
	}

	return notify.New(cfg.URL, apiKey, logger)
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
