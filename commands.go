package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/serisow/policybot/config"
	"github.com/serisow/policybot/pipeline_type"
	"github.com/serisow/policybot/server"
	"github.com/serisow/policybot/services/answer_service"
	"github.com/serisow/policybot/services/llm_service"
	"github.com/serisow/policybot/services/rag_service"
	"github.com/serisow/policybot/services/search_service"
)

const pageFetchMaxChars = 2000

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "policybot",
		Short:         "Answer banking policy and data questions from indexed PDFs and the web",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Load or build both indexes, then serve the HTTP API",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "index",
			Short: "Load or build both indexes and print their statistics",
			RunE:  runIndex,
		},
		newResetCommand(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	policy, data := app.prepareCorpora(ctx)
	service := newAnswerService(cfg, app, policy, data)

	serveCtx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	n := server.SetupNegroni(server.SetupRoutes(service, shutdown, app.logger))

	if cfg.Environment == "production" {
		return server.ServeProduction(serveCtx, n, server.Config{
			Domains:      cfg.Domains,
			CertCacheDir: cfg.CertCacheDir,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.WriteTimeout,
		}, app.logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      n,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server.ServeDevelopment(serveCtx, srv, app.logger)
}

func newAnswerService(cfg config.Config, app *application, policy, data *rag_service.Corpus) *answer_service.Service {
	llm := llm_service.NewOpenAIService(app.logger, cfg.LLMTimeout)

	documentConfig := map[string]interface{}{
		"api_url":      cfg.LLMAPIURL,
		"api_key":      cfg.LLMAPIKey,
		"model_name":   cfg.LLMModel,
		"max_attempts": cfg.LLMMaxAttempts,
	}
	webConfig := map[string]interface{}{
		"api_url":      cfg.LLMAPIURL,
		"api_key":      cfg.WebLLMAPIKey,
		"model_name":   cfg.LLMModel,
		"max_attempts": cfg.LLMMaxAttempts,
	}

	policyProfile := answer_service.PolicyProfile
	policyProfile.TopK = cfg.Policy.TopK
	dataProfile := answer_service.DataProfile
	dataProfile.TopK = cfg.Data.TopK

	var fetcher search_service.ContentFetcher
	if cfg.WebFetchPageContent {
		fetcher = search_service.NewPageFetcher(cfg.SearchTimeout, pageFetchMaxChars)
	}
	search := search_service.NewGoogleSearchClient(cfg.GoogleCustomSearchAPIKey, cfg.GoogleCustomSearchEngineID,
		cfg.GoogleSearchBaseURL, cfg.SearchTimeout, cfg.SearchRequestsPerSecond, app.logger)

	return answer_service.NewService(
		answer_service.NewDocumentAnswerer(policyProfile, policy, llm, documentConfig, app.logger),
		answer_service.NewDocumentAnswerer(dataProfile, data, llm, documentConfig, app.logger),
		search_service.NewWebAnswerer(search, llm, webConfig, fetcher, app.logger),
		app.logger,
	)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	policy, data := app.prepareCorpora(ctx)

	var errs []error
	out := cmd.OutOrStdout()
	for _, corpus := range []*rag_service.Corpus{policy, data} {
		if corpus.Err != nil {
			fmt.Fprintf(out, "%s: %s\n", corpus.Spec.Name, corpus.Message)
			errs = append(errs, fmt.Errorf("%s: %w", corpus.Spec.Name, corpus.Err))
			continue
		}
		s := corpus.Stats
		fmt.Fprintf(out, "%s: %d chunks from %s (files=%d pages=%d batches=%d, %.1fs)\n",
			corpus.Spec.Name, s.Chunks, s.LoadedFrom, s.Files, s.Pages, s.Batches, s.TotalTime)
	}
	return errors.Join(errs...)
}

func newResetCommand() *cobra.Command {
	var corpus string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete persisted indexes so the next start rebuilds them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApplication(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			targets := map[string]*rag_service.VectorIndex{
				pipeline_type.CorpusPolicy: app.policyIndex,
				pipeline_type.CorpusData:   app.dataIndex,
			}
			names := []string{pipeline_type.CorpusPolicy, pipeline_type.CorpusData}
			if corpus != "all" {
				if _, ok := targets[corpus]; !ok {
					return fmt.Errorf("unknown corpus %q (want policy, data or all)", corpus)
				}
				names = []string{corpus}
			}

			for _, name := range names {
				if err := targets[name].Reset(ctx); err != nil {
					return fmt.Errorf("resetting %s index: %w", name, err)
				}
				app.logger.Info("Index reset", slog.String("corpus", name))
				fmt.Fprintf(cmd.OutOrStdout(), "%s index removed\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "all", "corpus to reset: policy, data or all")
	return cmd
}
