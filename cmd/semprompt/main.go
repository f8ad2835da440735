// Package main is the semprompt CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semprompt/internal/cli"
	"github.com/hyperjump/semprompt/internal/config"
	"github.com/hyperjump/semprompt/internal/metrics"
	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/server"
	"github.com/hyperjump/semprompt/internal/storage"
	"github.com/hyperjump/semprompt/internal/vector"
	"github.com/hyperjump/semprompt/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/semprompt/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development), and falls back to built-in
// defaults when neither file exists. .env and SEMPROMPT_* overrides are applied last.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := loadConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func loadConfigFile(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "create":
		runCreate()
	case "similar":
		runSimilar()
	case "list":
		runList()
	case "status":
		runStatus()
	case "flush":
		runFlush()
	case "version", "--version", "-v":
		fmt.Printf("semprompt version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close(logger)

	srv := server.NewServer(
		components.Service,
		components.Store,
		components.Index,
		components.Embedder,
		components.Generator,
		cfg,
		metrics.New(components.Index),
		logger,
	)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
}

// commandFlags are shared by the client commands.
type commandFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	output     *string
}

func newCommandFlags(name string) *commandFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &commandFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path (for direct mode)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = open the stores directly; fails while a server holds the index lock)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

func (c *commandFlags) parse(args []string) cli.OutputFormat {
	_ = c.fs.Parse(argsReorder(args))
	format, err := cli.ParseOutputFormat(*c.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// withDirect opens the local stores, runs fn, and closes them (flushing the index).
func (c *commandFlags) withDirect(fn func(ctx context.Context, comp *Components, cfg *config.Config) error) error {
	cfg, _, err := loadConfig(*c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	comp, err := initializeComponents(cfg, logger)
	if err != nil {
		if errors.Is(err, vector.ErrLocked) {
			return fmt.Errorf("vector index is in use (is a server running? use --server): %w", err)
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer comp.Close(logger)
	return fn(context.Background(), comp, cfg)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", what, err)
	os.Exit(1)
}

func runCreate() {
	f := newCommandFlags("create")
	format := f.parse(os.Args[2:])
	text := joinArgs(f.fs.Args())
	if text == "" {
		fmt.Println("Usage: semprompt create [flags] <prompt>")
		os.Exit(1)
	}

	var rec *models.PromptRecord
	var err error
	if *f.serverURL != "" {
		rec, err = cli.NewClient(*f.serverURL, nil).CreatePrompt(context.Background(), text)
	} else {
		err = f.withDirect(func(ctx context.Context, comp *Components, _ *config.Config) error {
			var cerr error
			rec, cerr = comp.Service.Create(ctx, text)
			return cerr
		})
	}
	if err != nil {
		fail("Create", err)
	}
	if err := cli.WriteRecord(os.Stdout, rec, format); err != nil {
		fail("Output", err)
	}
}

func runSimilar() {
	f := newCommandFlags("similar")
	k := f.fs.Int("k", models.DefaultK, "number of similar prompts to return")
	format := f.parse(os.Args[2:])
	query := joinArgs(f.fs.Args())
	if query == "" {
		fmt.Println("Usage: semprompt similar [flags] <query>")
		os.Exit(1)
	}

	var results []*models.SimilarResult
	var err error
	if *f.serverURL != "" {
		results, err = cli.NewClient(*f.serverURL, nil).Similar(context.Background(), query, *k)
	} else {
		err = f.withDirect(func(ctx context.Context, comp *Components, _ *config.Config) error {
			var serr error
			results, serr = comp.Service.Similar(ctx, models.SimilarQuery{Query: query, K: *k})
			return serr
		})
	}
	if err != nil {
		fail("Similar", err)
	}
	if err := cli.WriteSimilarResults(os.Stdout, query, results, format); err != nil {
		fail("Output", err)
	}
}

func runList() {
	f := newCommandFlags("list")
	page := f.fs.Int("page", 1, "page number (1-based)")
	pageSize := f.fs.Int("page-size", models.DefaultPageSize, "prompts per page")
	format := f.parse(os.Args[2:])
	q := models.PageQuery{Page: *page, PageSize: *pageSize}

	var result *models.PromptPage
	var err error
	if *f.serverURL != "" {
		result, err = cli.NewClient(*f.serverURL, nil).ListPrompts(context.Background(), q)
	} else {
		err = f.withDirect(func(ctx context.Context, comp *Components, _ *config.Config) error {
			var lerr error
			result, lerr = comp.Service.List(ctx, q)
			return lerr
		})
	}
	if err != nil {
		fail("List", err)
	}
	if err := cli.WritePage(os.Stdout, result, format); err != nil {
		fail("Output", err)
	}
}

func runStatus() {
	f := newCommandFlags("status")
	format := f.parse(os.Args[2:])

	var status *cli.Status
	var err error
	if *f.serverURL != "" {
		status, err = cli.NewClient(*f.serverURL, nil).Status(context.Background())
	} else {
		err = f.withDirect(func(ctx context.Context, comp *Components, cfg *config.Config) error {
			total, cerr := comp.Store.Count(ctx)
			if cerr != nil {
				return cerr
			}
			status = &cli.Status{
				TotalPrompts: total,
				Embedder:     comp.Embedder.ModelName(),
				Dimensions:   comp.Embedder.Dimensions(),
				Generator:    comp.Generator.Name(),
				VectorIndex:  comp.Index.Stats(),
				DatabasePath: cfg.Storage.DatabasePath,
			}
			paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.VectorIndexPath)
			if diskBytes, derr := storage.DiskUsageBytes(paths...); derr == nil {
				status.DiskUsageBytes = &diskBytes
			}
			return nil
		})
	}
	if err != nil {
		fail("Status", err)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output", err)
	}
}

func runFlush() {
	f := newCommandFlags("flush")
	_ = f.parse(os.Args[2:])

	var count int
	var err error
	if *f.serverURL != "" {
		count, err = cli.NewClient(*f.serverURL, nil).Flush(context.Background())
	} else {
		err = f.withDirect(func(_ context.Context, comp *Components, _ *config.Config) error {
			count = comp.Index.Count()
			return comp.Index.Flush()
		})
	}
	if err != nil {
		fail("Flush", err)
	}
	fmt.Printf("Vector index flushed (%d entries)\n", count)
}

// joinArgs joins all positional args with spaces so multi-word prompts work the same with
// or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the positional text to
// the front of the slice so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument, so "semprompt similar \"query\" -k 5" would otherwise leave -k
// unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`semprompt - Prompt store with semantic similarity search

Usage:
  semprompt server [flags]             Start the HTTP server
  semprompt create [flags] <prompt>    Store a prompt and print the generated response
  semprompt similar [flags] <query>    Find stored prompts similar to query
  semprompt list [flags]               List stored prompts, newest first
  semprompt status [flags]             Show storage and vector index status
  semprompt flush [flags]              Write the vector index snapshot now
  semprompt version                    Show version
  semprompt help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/semprompt/config.yaml)
  --debug            Enable debug logging

Client Flags (create, similar, list, status, flush):
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to
                     open the stores directly when no server is running.
  --config string    Config file path (for direct mode)
  --output string    Output format: text or json (default: text)
  --k int            similar: number of results (default: 3)
  --page int         list: page number (default: 1)
  --page-size int    list: prompts per page (default: 10)

Environment:
  SEMPROMPT_* variables (also read from .env) override config values, e.g.
  SEMPROMPT_PORT, SEMPROMPT_DATABASE_PATH, SEMPROMPT_FLUSH_INTERVAL, SEMPROMPT_RATE_LIMIT_ENABLED.

Examples:
  semprompt server
  semprompt create "How do I make sourdough bread?"
  semprompt similar bread recipes -k 5
  semprompt list --page 2 --output json
  semprompt status --server ""`)
}
