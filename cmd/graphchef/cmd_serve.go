package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/graphchef/internal/api"
	"github.com/user/graphchef/internal/config"
	ctxengine "github.com/user/graphchef/internal/context"
	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/delivery"
	"github.com/user/graphchef/internal/gateway"
	"github.com/user/graphchef/internal/graph"
	"github.com/user/graphchef/internal/runtime"
	"github.com/user/graphchef/internal/runtime/tools"
	"github.com/user/graphchef/internal/scheduler"
	"github.com/user/graphchef/internal/state"
	"github.com/user/graphchef/internal/telegram"
	"github.com/user/graphchef/internal/types"
	"github.com/user/graphchef/pkg/llm"
	"github.com/user/graphchef/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the graphchef daemon",
	RunE:  runServe,
}

// buildService wires the store, model provider, graph client, and agent
// loop into a conversation service. Shared by serve and the one-shot ask.
func buildService(cfg *config.Config) (*conversation.Service, *state.Store, *runtime.Registry, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := state.Open(filepath.Join(cfg.DataDir, "graphchef.db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open state store: %w", err)
	}

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	engine, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve, cfg.SystemPromptPath)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("create context engine: %w", err)
	}

	graphClient := graph.NewHTTPClient(cfg.Graph.BaseURL, cfg.Graph.APIKey)
	registry := runtime.NewRegistry()
	registry.Register(tools.NewExecuteQuery(graphClient))

	loop := runtime.NewLoop(provider, registry, cfg.MaxToolRounds)
	svc := conversation.New(store, store, engine, loop, registry.Names())
	return svc, store, registry, nil
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "graphchef.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	svc, store, _, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	gw := gateway.New(store, svc, int64(cfg.MaxConcurrent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("graphchef started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"graph_url", cfg.Graph.BaseURL,
		"pid_file", pidPath,
	)

	// Task store
	taskStore := state.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, store, store)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		// Register telegram delivery for cron responses
		deliveryReg.Register("telegram:", adapter.SendTo)
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Helper: synchronously run a question through the gateway and return
	// the answer.
	askByKey := func(ctx context.Context, question string, key types.ThreadKey) (*conversation.Answer, error) {
		type result struct {
			answer *conversation.Answer
			err    error
		}
		done := make(chan result, 1)
		q := &types.InboundQuestion{
			Source:    "task",
			ThreadKey: key,
			UserID:    "system",
			Text:      question,
		}
		if err := gw.HandleInbound(ctx, q, gateway.WithOnComplete(func(answer *conversation.Answer, err error) {
			done <- result{answer, err}
		})); err != nil {
			return nil, err
		}
		select {
		case r := <-done:
			return r.answer, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Scheduler
	sched := scheduler.New(taskStore, func(key types.ThreadKey, question string) {
		answer, err := askByKey(ctx, question, key)
		if err != nil {
			slog.Error("cron task failed", "thread_key", key, "error", err)
			return
		}
		if answer.Response == "" {
			return
		}
		if err := deliveryReg.Deliver(key, answer.Response); err != nil {
			slog.Error("cron delivery failed", "thread_key", key, "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// HTTP server
	if cfg.HTTP.Enabled {
		ask := func(ctx context.Context, question string, threadID types.ThreadID) (*conversation.Answer, error) {
			type result struct {
				answer *conversation.Answer
				err    error
			}
			done := make(chan result, 1)
			q := &types.InboundQuestion{Source: "http", ThreadID: threadID, Text: question}
			if err := gw.HandleInbound(ctx, q, gateway.WithOnComplete(func(answer *conversation.Answer, err error) {
				done <- result{answer, err}
			})); err != nil {
				return nil, err
			}
			select {
			case r := <-done:
				return r.answer, r.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		apiSrv := api.NewServer(taskStore, ask, askByKey, store, store)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: apiSrv,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, reloading scheduler")
			if err := sched.Reload(); err != nil {
				slog.Error("scheduler reload failed", "error", err)
			}
			continue
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
