// Package main is the ragkit CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hyperjump/ragkit/internal/cli"
	"github.com/hyperjump/ragkit/internal/config"
	"github.com/hyperjump/ragkit/internal/loader"
	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/pipeline"
	"github.com/hyperjump/ragkit/internal/storage"
	"github.com/hyperjump/ragkit/internal/watcher"
	"github.com/hyperjump/ragkit/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ragkit/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file yields the built-in defaults rooted
// at the current directory. Returns the config and the path that was actually loaded
// ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, cwdErr := os.Getwd()
		if cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			if cwdErr != nil {
				return nil, "", cwdErr
			}
			return config.Default(cwd), "", nil
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
	_ = godotenv.Load()

	command := os.Args[1]
	switch command {
	case "index":
		runIndex()
	case "query":
		runQuery()
	case "context":
		runContext()
	case "status":
		runStatus()
	case "clean":
		runClean()
	case "watch":
		runWatch()
	case "check":
		runCheck()
	case "version", "--version", "-v":
		fmt.Printf("ragkit version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "ragkit query fox --k 3" would
// otherwise leave --k unparsed.
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

// Components holds initialized services.
type Components struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger
	Catalog    *storage.SQLiteStorage
	Pipeline   *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Pipeline != nil {
		_ = c.Pipeline.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// setup loads config and builds a logger honoring the debug override.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("database_path", cfg.Storage.DatabasePath),
	)
	return cfg, resolved, logger, nil
}

func initializeComponents(cfg *config.Config, resolvedPath string, logger *zap.Logger) (*Components, error) {
	catalog, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	ld, err := loader.New(loader.WithLogger(logger), loader.WithExtensions(cfg.Loader.Extensions...))
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize loader: %w", err)
	}
	p, err := pipeline.New(cfg.ToPipeline(),
		pipeline.WithLogger(logger),
		pipeline.WithLoader(ld),
		pipeline.WithStorage(catalog),
	)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	logger.Debug("catalog opened",
		zap.String("path", catalog.Path()),
		zap.String("driver", storage.DriverName),
		zap.String("build", storage.BuildMode),
	)
	return &Components{
		Config:     cfg,
		ConfigPath: resolvedPath,
		Logger:     logger,
		Catalog:    catalog,
		Pipeline:   p,
	}, nil
}

func openComponents(configPath string, debug bool) *Components {
	cfg, resolved, logger, err := setup(configPath, debug)
	if err != nil {
		exitf("%v", err)
	}
	components, err := initializeComponents(cfg, resolved, logger)
	if err != nil {
		_ = logger.Sync()
		exitf("%v", err)
	}
	return components
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: ragkit index [flags] <file-or-directory>...")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		exitf("%v", err)
	}

	components := openComponents(*configPath, false)
	defer components.Close()

	ctx := context.Background()
	total := &models.IndexReport{}
	for _, path := range fs.Args() {
		report, err := components.Pipeline.Index(ctx, path)
		total.Merge(report)
		if err != nil {
			_ = cli.WriteIndexReport(os.Stdout, total, format)
			components.Close()
			exitf("Indexing %s failed: %v", path, err)
		}
	}
	if err := cli.WriteIndexReport(os.Stdout, total, format); err != nil {
		exitf("Output failed: %v", err)
	}
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of passages (0 = top_k from config)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: ragkit query [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		exitf("%v", err)
	}

	components := openComponents(*configPath, false)
	defer components.Close()

	docs, err := components.Pipeline.Retrieve(context.Background(), query, *k)
	if err != nil {
		components.Close()
		exitf("Query failed: %v", err)
	}
	if err := cli.WriteResults(os.Stdout, query, docs, format); err != nil {
		components.Close()
		exitf("Output failed: %v", err)
	}
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of passages (0 = top_k from config)")
	separator := fs.String("separator", "", `separator between passages (default "\n\n")`)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: ragkit context [flags] <query>")
		os.Exit(1)
	}

	components := openComponents(*configPath, false)
	defer components.Close()

	text, err := components.Pipeline.GetContext(context.Background(), query, *k, unescape(*separator))
	if err != nil {
		components.Close()
		exitf("Context failed: %v", err)
	}
	fmt.Println(text)
}

// unescape turns the common backslash escapes typed on a shell into their characters.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		exitf("%v", err)
	}

	components := openComponents(*configPath, false)
	defer components.Close()

	status := buildStatus(components)
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		components.Close()
		exitf("Output failed: %v", err)
	}
}

func buildStatus(c *Components) cli.Status {
	status := cli.Status{
		Stats:        c.Pipeline.Stats(),
		ConfigPath:   c.ConfigPath,
		DatabasePath: c.Catalog.Path(),
	}
	if diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(c.Catalog.Path())...); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status
}

func runClean() {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger, err := setup(*configPath, false)
	if err != nil {
		exitf("%v", err)
	}
	defer logger.Sync()

	// The catalog is opened directly so that an index built with another configuration
	// can still be cleared.
	catalog, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		exitf("Failed to open catalog: %v", err)
	}
	defer catalog.Close()

	ctx := context.Background()
	n, err := catalog.CountEntries(ctx)
	if err != nil {
		exitf("Count entries failed: %v", err)
	}
	if !*yes {
		prompt := fmt.Sprintf("Remove %d entries from %s?", n, catalog.Path())
		if !confirm(os.Stdin, os.Stdout, prompt) {
			fmt.Println("Aborted.")
			return
		}
	}
	if err := catalog.Clear(ctx); err != nil {
		exitf("Clean failed: %v", err)
	}
	logger.Info("catalog cleared", zap.String("path", catalog.Path()), zap.Int64("entries", n))
	fmt.Printf("Removed %d entries\n", n)
}

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file indexing, etc.)")
	noSync := fs.Bool("no-sync", false, "skip indexing files already present at startup")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	components := openComponents(*configPath, *debug)
	defer components.Close()

	dirs := watchDirectories(fs.Args(), components.Config.Watch.Directories)
	if len(dirs) == 0 {
		components.Close()
		exitf("Usage: ragkit watch [flags] <dir>... (or set watch.directories in config)")
	}

	w := newWatcher(components, dirs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		components.Close()
		exitf("Failed to start watcher: %v", err)
	}
	if !*noSync {
		w.SyncExisting()
	}
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", strings.Join(w.Directories(), ", "))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	components.Logger.Info("Shutting down...")
	cancel()
	w.Stop()
	stats := w.Stats()
	fmt.Printf("indexed=%d removed=%d failed=%d\n", stats.Indexed, stats.Removed, stats.Failed)
}

const smokeDocument = "Retrieval smoke test: the quick brown fox jumps over the lazy dog."

// checkResult reports a check run.
type checkResult struct {
	Stats    pipeline.Stats
	Query    string
	LiveHits []models.RetrievedDocument
}

// smokeCheck round-trips a sample document through a scratch pipeline built from the same
// configuration, then runs query against the live index when it has entries.
func smokeCheck(ctx context.Context, c *Components, query string) (*checkResult, error) {
	scratch, err := pipeline.New(c.Config.ToPipeline(), pipeline.WithLogger(c.Logger))
	if err != nil {
		return nil, fmt.Errorf("build scratch pipeline: %w", err)
	}
	defer scratch.Close()

	doc := models.NewDocument(smokeDocument, "ragkit-check", "txt")
	if _, err := scratch.IndexDocuments(ctx, []models.Document{doc}); err != nil {
		return nil, fmt.Errorf("index sample: %w", err)
	}
	got, err := scratch.Retrieve(ctx, smokeDocument, 1)
	if err != nil {
		return nil, fmt.Errorf("retrieve sample: %w", err)
	}
	if len(got) != 1 || got[0].Metadata[models.MetaSource] != "ragkit-check" {
		return nil, errors.New("sample document was not retrieved")
	}

	result := &checkResult{Stats: c.Pipeline.Stats(), Query: query}
	if query == "" || result.Stats.Entries == 0 {
		return result, nil
	}
	result.LiveHits, err = c.Pipeline.Retrieve(ctx, query, 1)
	if err != nil {
		return nil, fmt.Errorf("query live index: %w", err)
	}
	return result, nil
}

func runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	components := openComponents(*configPath, false)
	defer components.Close()

	result, err := smokeCheck(context.Background(), components, buildQuery(fs.Args()))
	if err != nil {
		components.Close()
		exitf("Check failed: %v", err)
	}
	fmt.Printf("Embedder: %s (%d dims)\n", result.Stats.EmbeddingBackend, result.Stats.EmbeddingDim)
	fmt.Printf("Vector store: %s\n", result.Stats.VectorBackend)
	fmt.Printf("Index: %d entries from %d sources\n", result.Stats.Entries, result.Stats.Sources)
	if len(result.LiveHits) > 0 {
		fmt.Printf("Top hit for %q: %s\n", result.Query, result.LiveHits[0].Metadata[models.MetaSource])
	}
	fmt.Println("OK")
}

// watchDirectories prefers directories given on the command line over configured ones.
func watchDirectories(args, configured []string) []string {
	if len(args) == 0 {
		return configured
	}
	return args
}

func newWatcher(c *Components, dirs []string) *watcher.Watcher {
	p := c.Pipeline
	return watcher.NewWatcher(
		dirs,
		p.Loader().Extensions(),
		c.Config.Watch.RecursiveOrDefault(),
		func(ctx context.Context, path string) error {
			_, err := p.ReindexFile(ctx, path)
			return err
		},
		func(ctx context.Context, path string) error {
			_, err := p.RemoveSource(ctx, path)
			return err
		},
		watcher.WithLogger(c.Logger),
	)
}

func printUsage() {
	fmt.Println(`ragkit - Local retrieval-augmented generation engine

Usage:
  ragkit index [flags] <path>...     Index files or directories
  ragkit query [flags] <query>       Retrieve the most relevant passages
  ragkit context [flags] <query>     Print retrieved passages as prompt context
  ragkit status [flags]              Show index, backend and storage status
  ragkit clean [flags]               Remove everything from the index
  ragkit watch [flags] [dir...]      Keep the index in sync with directories
  ragkit check [flags] [query]       Build the pipeline and run a smoke retrieval
  ragkit version                     Show version
  ragkit help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/ragkit/config.yaml,
                     or ./config.yaml when present)

Index Flags:
  --output string    Output format: text or json (default: text)

Query Flags:
  --k int            Number of passages (default: top_k from config)
  --output string    Output format: text, compact, or json (default: text)

Context Flags:
  --k int            Number of passages (default: top_k from config)
  --separator string Separator between passages (default: blank line)

Status Flags:
  --output string    Output format: text or json (default: text)

Clean Flags:
  --yes              Do not ask for confirmation

Watch Flags:
  --debug            Enable debug logging
  --no-sync          Skip indexing files already present at startup

Examples:
  ragkit index ./docs
  ragkit query "how do foxes hunt"
  ragkit query --output json --k 3 fox    # structured JSON for other apps
  ragkit context --separator "\n---\n" fox
  ragkit status --output json
  ragkit clean --yes
  ragkit watch ./docs ./notes
  ragkit check "how do foxes hunt"`)
}
