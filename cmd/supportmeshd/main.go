// Command supportmeshd runs the customer-support triage workflow behind an
// HTTP gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/supportmesh"
	"github.com/hupe1980/supportmesh/classify"
	anthropicclassify "github.com/hupe1980/supportmesh/classify/anthropic"
	openaiclassify "github.com/hupe1980/supportmesh/classify/openai"
	"github.com/hupe1980/supportmesh/config"
	"github.com/hupe1980/supportmesh/coordinator"
	"github.com/hupe1980/supportmesh/gateway"
	"github.com/hupe1980/supportmesh/logging"
	"github.com/hupe1980/supportmesh/transcript"
	transcriptpg "github.com/hupe1980/supportmesh/transcript/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "supportmeshd",
		Short:         "Customer support triage workflow daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	return cmd
}

func run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	writer, cleanup, err := buildWriter(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sentiment, intent, err := buildClassifiers(cfg)
	if err != nil {
		return err
	}

	mesh := supportmesh.New(func(o *supportmesh.Options) {
		o.CoordinatorConfig = coordinatorConfig(cfg)
		o.SentimentClassifier = sentiment
		o.IntentClassifier = intent
		o.TranscriptWriter = writer
		o.Logger = logger
	})
	defer mesh.Close()

	handler := gateway.New(mesh, func(o *gateway.Options) { o.Logger = logger })

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("supportmeshd listening", "addr", cfg.Server.Addr,
		"classifier", cfg.Classifier.Provider)

	return runServer(ctx, srv)
}

func coordinatorConfig(cfg *config.Config) coordinator.Config {
	c := coordinator.DefaultConfig()
	if len(cfg.Workflow.SentimentEscalationLabels) > 0 {
		c.SentimentEscalationLabels = cfg.Workflow.SentimentEscalationLabels
	}
	c.IntentConfidenceThreshold = cfg.Workflow.IntentConfidenceThreshold
	return c
}

func buildClassifiers(cfg *config.Config) (classify.Classifier, classify.Classifier, error) {
	switch cfg.Classifier.Provider {
	case "", "rule":
		return classify.NewRuleSentimentClassifier(), classify.NewRuleIntentClassifier(), nil
	case "openai":
		optFn := func(o *openaiclassify.Options) {
			if cfg.Classifier.Model != "" {
				o.Model = cfg.Classifier.Model
			}
		}
		return openaiclassify.NewClassifier(classify.TaskSentiment, optFn),
			openaiclassify.NewClassifier(classify.TaskIntent, optFn), nil
	case "anthropic":
		optFn := func(o *anthropicclassify.Options) {
			if cfg.Classifier.Model != "" {
				o.Model = anthropic.Model(cfg.Classifier.Model)
			}
		}
		return anthropicclassify.NewClassifier(classify.TaskSentiment, optFn),
			anthropicclassify.NewClassifier(classify.TaskIntent, optFn), nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier provider %q", cfg.Classifier.Provider)
	}
}

func buildWriter(cfg *config.Config, logger logging.Logger) (transcript.Writer, func(), error) {
	if cfg.Transcript.PostgresDSN == "" {
		logger.Info("transcripts kept in memory (no postgres dsn configured)")
		return transcript.NewMemoryWriter(), func() {}, nil
	}

	writer, err := transcriptpg.Connect(cfg.Transcript.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect transcript store: %w", err)
	}
	logger.Info("transcripts persisted to postgres")
	return writer, func() { _ = writer.Close() }, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
