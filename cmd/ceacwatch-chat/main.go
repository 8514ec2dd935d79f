// Package main runs an interactive chat console: a model converses with the
// user and runs visa status checks through tool calls.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ceacwatch/ceacwatch/pkg/agent"
	"github.com/ceacwatch/ceacwatch/pkg/ceac"
	"github.com/ceacwatch/ceacwatch/pkg/checker"
	"github.com/ceacwatch/ceacwatch/pkg/config"
	"github.com/ceacwatch/ceacwatch/pkg/logging"
	"github.com/ceacwatch/ceacwatch/pkg/solver"
)

const version = "0.1.0"

type cliFlags struct {
	configFile  string
	model       string
	showVersion bool
}

func main() {
	flags := &cliFlags{}
	flag.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.model, "model", "", "Chat model (overrides config solver model)")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if flags.showVersion {
		fmt.Printf("ceacwatch-chat v%s\n", version)
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "ceacwatch-chat: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *cliFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	apiKey := cfg.Solver.APIKey()
	if apiKey == "" {
		return fmt.Errorf("no API key found; set %s", cfg.Solver.APIKeyEnv)
	}

	driver := ceac.NewDriver(ceac.Options{
		Headless:          cfg.Headless,
		FormURL:           cfg.FormURL,
		NavigationTimeout: cfg.NavigationTimeout.Std(),
	})
	if err := driver.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := driver.Shutdown(); err != nil {
			logger.Warn("driver shutdown failed", zap.Error(err))
		}
	}()

	registry := checker.NewRegistry()
	registry.SetTTL(cfg.SessionTTL.Std())
	registry.SetMaxSessions(cfg.MaxSessions)

	// The chat flow always solves challenges automatically.
	vision := solver.NewVision(apiKey, cfg.Solver.BaseURL, solver.WithModel(cfg.Solver.Model))
	orchestrator := checker.NewOrchestrator(registry, driver, vision, logger)

	model := cfg.Solver.Model
	if flags.model != "" {
		model = flags.model
	}
	completer := agent.NewOpenAICompleter(apiKey, cfg.Solver.BaseURL, agent.WithChatModel(model))
	chat := agent.New(completer, logger,
		agent.NewStatusTool(orchestrator),
		agent.NewSessionsTool(orchestrator))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return repl(ctx, chat)
}

func repl(ctx context.Context, chat *agent.Agent) error {
	fmt.Println("Visa status assistant. Type 'exit' or 'quit' to leave, 'reset' to start over.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			fmt.Println("Goodbye.")
			return nil
		case "reset":
			chat.Reset()
			fmt.Println("Conversation cleared.")
			continue
		}

		reply, err := chat.Send(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nGoodbye.")
				return nil
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}
