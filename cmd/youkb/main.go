package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"youkb/internal/chat"
	"youkb/internal/config"
	"youkb/internal/ingest"
	"youkb/internal/kbstore"
	kbmemory "youkb/internal/kbstore/memory"
	kbsqlite "youkb/internal/kbstore/sqlite"
	"youkb/internal/llm"
	"youkb/internal/server"
	"youkb/internal/tui"
)

const usage = `Usage: youkb <command> [flags]

Commands:
  create <name>               create a new knowledge base
  digest -kb <name> <root>... ingest subtitle/text/markdown files
  ask    -kb <name> <query>   ask a single question
  chat   -kb <name>           interactive chat session
  list                        list knowledge bases
  stats  <name>               show knowledge base contents
  drop   <name>               delete a knowledge base and its passages
  serve                       run the HTTP front end

Flags common to all commands:
  -config <path>              YAML config file (default: config.yaml, then ~/.config/youkb/config.yaml)
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	log := newLogger()
	app := &app{log: log}

	var err error
	switch os.Args[1] {
	case "create":
		err = app.runCreate(os.Args[2:])
	case "digest":
		err = app.runDigest(os.Args[2:])
	case "ask":
		err = app.runAsk(os.Args[2:])
	case "chat":
		err = app.runChat(os.Args[2:])
	case "list":
		err = app.runList(os.Args[2:])
	case "stats":
		err = app.runStats(os.Args[2:])
	case "drop":
		err = app.runDrop(os.Args[2:])
	case "serve":
		err = app.runServe(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

type app struct {
	log *slog.Logger
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (a *app) loadConfig(fs *flag.FlagSet, args []string) (*config.AppConfig, error) {
	cfgPath := fs.String("config", "", "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *cfgPath != "" {
		return config.Load(*cfgPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func (a *app) openStore(cfg *config.AppConfig) (kbstore.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite", "":
		return kbsqlite.Open(cfg.Store.Path)
	case "memory":
		return kbmemory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (a *app) newLLMClient(cfg *config.AppConfig) (*llm.Client, error) {
	return llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKeyEnv:  cfg.LLM.APIKeyEnv,
		EmbedModel: cfg.LLM.EmbedModel,
		ChatModel:  cfg.LLM.ChatModel,
		Timeout:    time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
}

func (a *app) runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: youkb create <name>")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	name := fs.Arg(0)
	if err := store.Create(context.Background(), name); err != nil {
		return err
	}
	color.Green("Knowledge base %q created.", name)
	return nil
}

func (a *app) runDigest(args []string) error {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	kbName := fs.String("kb", "", "Knowledge base name")
	recursive := fs.Bool("recursive", false, "Search roots recursively")
	patterns := fs.String("patterns", "", "Comma-separated filename patterns (default from config)")
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *kbName == "" || fs.NArg() == 0 {
		return fmt.Errorf("usage: youkb digest -kb <name> [-recursive] [-patterns '*.vtt,*.txt'] <root>...")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := a.newLLMClient(cfg)
	if err != nil {
		return err
	}

	opts := ingest.Options{
		Patterns:   cfg.Digest.Patterns,
		Recursive:  *recursive,
		SizeBudget: cfg.Chunker.SizeBudget,
		Workers:    cfg.Digest.Workers,
	}
	if *patterns != "" {
		opts.Patterns = strings.Split(*patterns, ",")
	}
	ing := ingest.New(store, client, opts, a.log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	report, err := ing.Digest(ctx, *kbName, fs.Args())
	if err != nil {
		return err
	}
	color.Green("Processed %d files (%d skipped), %d chunks added.", report.Processed, report.Skipped, report.Chunks)
	return nil
}

func (a *app) runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	kbName := fs.String("kb", "", "Knowledge base name")
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *kbName == "" || fs.NArg() == 0 {
		return fmt.Errorf("usage: youkb ask -kb <name> <question>")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := a.newLLMClient(cfg)
	if err != nil {
		return err
	}
	svc := chat.New(store, client, client, cfg.Chat.TopK, a.log)

	query := strings.Join(fs.Args(), " ")
	answer, citations, err := svc.Ask(context.Background(), *kbName, query)
	if err != nil {
		return err
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n%s\n", boldGreen("Answer:"), answer)
	if len(citations) > 0 {
		fmt.Printf("\n%s\n", boldCyan("Sources:"))
		for _, c := range citations {
			fmt.Printf("  [%d] %s\n", c.Ref, c.Locator)
		}
	}
	return nil
}

func (a *app) runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	kbName := fs.String("kb", "", "Knowledge base name")
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *kbName == "" {
		return fmt.Errorf("usage: youkb chat -kb <name>")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := a.newLLMClient(cfg)
	if err != nil {
		return err
	}
	if ok, err := store.Exists(context.Background(), *kbName); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%q: %w", *kbName, kbstore.ErrNotFound)
	}
	svc := chat.New(store, client, client, cfg.Chat.TopK, a.log)

	m := tui.New(svc, *kbName)
	_, err = tea.NewProgram(m).Run()
	return err
}

func (a *app) runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	names, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No knowledge bases yet.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func (a *app) runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: youkb stats <name>")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	stats, err := store.Stats(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("Passages: %d\n", stats.Rows)
	fmt.Printf("Distinct videos: %d\n", stats.DistinctVideos)
	if len(stats.ByFileType) > 0 {
		fmt.Println("By file type:")
		for _, k := range sortedKeys(stats.ByFileType) {
			fmt.Printf("  %-8s %d\n", k, stats.ByFileType[k])
		}
	}
	if len(stats.BySourceFile) > 0 {
		fmt.Println("By source file:")
		for _, k := range sortedKeys(stats.BySourceFile) {
			fmt.Printf("  %-40s %d\n", k, stats.BySourceFile[k])
		}
	}
	return nil
}

func (a *app) runDrop(args []string) error {
	fs := flag.NewFlagSet("drop", flag.ExitOnError)
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: youkb drop <name>")
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	name := fs.Arg(0)
	if err := store.Drop(context.Background(), name); err != nil {
		return err
	}
	color.Yellow("Knowledge base %q dropped.", name)
	return nil
}

func (a *app) runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := a.loadConfig(fs, args)
	if err != nil {
		return err
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	client, err := a.newLLMClient(cfg)
	if err != nil {
		return err
	}
	svc := chat.New(store, client, client, cfg.Chat.TopK, a.log)
	ing := ingest.New(store, client, ingest.Options{
		Patterns:   cfg.Digest.Patterns,
		Recursive:  true,
		SizeBudget: cfg.Chunker.SizeBudget,
		Workers:    cfg.Digest.Workers,
	}, a.log)

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, svc, ing, a.log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
