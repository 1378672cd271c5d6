// Package main is the Virtual TA CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/answer"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/cli"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/config"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/course"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/forum"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/generator"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/keyword"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/search"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/server"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/storage"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/tutor"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/watcher"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "config.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := loadDotEnv(defaultEnvFile); err != nil {
		fmt.Printf("Failed to load %s: %v\n", defaultEnvFile, err)
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "refresh":
		runRefresh()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("virtualta version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path when it exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// setup loads the config and builds the logger shared by every subcommand.
func setup(configPath string, debug bool, opts ...config.LoadOption) (*config.Config, *zap.Logger) {
	cfg, err := config.LoadOrDefault(configPath, opts...)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, dir := range cfg.Course.Directories {
		res, err := components.Loader.LoadPath(ctx, dir)
		if err != nil {
			logger.Warn("course load failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("course material loaded",
			zap.String("dir", dir),
			zap.Int("files", res.Files),
			zap.Int("sections", res.Sections),
			zap.Int("failed", res.Failed))
	}

	var opts []server.Option
	if cfg.Course.Watch && len(cfg.Course.Directories) > 0 {
		w := watcher.NewWatcher(cfg.Course.Directories, components.Loader,
			watcher.WithLogger(logger),
			watcher.WithRecursive(cfg.Course.RecursiveOrDefault()))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		opts = append(opts, server.WithWatcher(w))
	}

	srv := server.NewServer(components.Service, components.Storage, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them.
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

// buildQuestion joins positional args so quoting is optional.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// readImage returns the base64 encoding of the file at path, or "" when path is empty.
func readImage(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty answers from the local database")
	imagePath := fs.String("image", "", "image file attached to the question")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: virtualta ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	image, err := readImage(*imagePath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var ans *models.Answer
	if *serverURL != "" {
		ans, err = askViaHTTP(*serverURL, question, image)
		if err != nil {
			fmt.Printf("Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath, *debug)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize components", zap.Error(err))
		}
		defer components.Close()
		ans, err = components.Service.Answer(context.Background(), question, image)
		if err != nil {
			fmt.Printf("Ask failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
		fmt.Printf("Failed to write answer: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question, image string) (*models.Answer, error) {
	body, err := json.Marshal(map[string]string{"question": question, "image": image})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var ans models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

// windowFromFlags resolves the harvest window, falling back to the configured dates.
func windowFromFlags(start, end string, cfg *config.Config) (models.DateWindow, error) {
	if start == "" {
		start = cfg.Forum.StartDate
	}
	if end == "" {
		end = cfg.Forum.EndDate
	}
	return models.ParseDateWindow(start, end)
}

func runRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	start := fs.String("start", "", "window start date (YYYY-MM-DD)")
	end := fs.String("end", "", "window end date (YYYY-MM-DD)")
	mode := fs.String("mode", "", "harvest mode: quick or full (default from config)")
	category := fs.Int("category", -1, "harvest a category listing instead of search terms (-1 uses search terms)")
	export := fs.String("export", "", "also write the harvested posts to this JSON file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug, config.WithForumMode(*mode))
	defer logger.Sync()
	window, err := windowFromFlags(*start, *end, cfg)
	if err != nil {
		fmt.Printf("Invalid window: %v\n", err)
		os.Exit(1)
	}

	var svcOpts []tutor.Option
	if *export != "" {
		svcOpts = append(svcOpts, tutor.WithExporter(forum.NewJSONExporter(*export)))
	}
	components, err := initializeComponents(cfg, logger, svcOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var n int
	if *category >= 0 {
		n, err = components.Service.RefreshCategory(ctx, *category, window)
	} else {
		n, err = components.Service.RefreshKnowledge(ctx, window)
	}
	if err != nil {
		fmt.Printf("Refresh failed after storing %d posts: %v\n", n, err)
		os.Exit(1)
	}
	fmt.Printf("Stored %d forum posts (%s)\n", n, window)
	if *export != "" {
		fmt.Printf("Exported harvest to %s\n", *export)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Println("Usage: virtualta import [flags] <file-or-directory>...")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	failed := false
	for _, p := range paths {
		res, err := components.Loader.LoadPath(ctx, p)
		if err != nil {
			fmt.Printf("%s: %v\n", p, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d files, %d sections, %d failed\n", p, res.Files, res.Sections, res.Failed)
		if res.Failed > 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads the local database")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var st *cli.Status
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL)
	} else {
		st, err = localStatus(*configPath)
	}
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Printf("Failed to write status: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(configPath string) (*cli.Status, error) {
	cfg, logger := setup(configPath, false)
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx := context.Background()
	st := &cli.Status{
		DatabasePath:   cfg.Storage.DatabasePath,
		ForumBaseURL:   cfg.Forum.BaseURL,
		HarvestMode:    cfg.Forum.Mode,
		GeneratorReady: cfg.Generator.APIKey != "",
		Model:          cfg.Generator.Model,
		CourseDirs:     cfg.Course.Directories,
	}
	if st.ForumPosts, err = store.CountPosts(ctx); err != nil {
		return nil, err
	}
	if st.CourseSections, err = store.CountCourseContent(ctx); err != nil {
		return nil, err
	}
	if st.DiskUsageBytes, err = storage.DiskUsageBytes(cfg.Storage.DatabasePath); err != nil {
		logger.Warn("disk usage unavailable", zap.Error(err))
	}
	return st, nil
}

type statusResponse struct {
	ForumPosts     int64 `json:"forum_posts"`
	CourseSections int64 `json:"course_sections"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
	Config         struct {
		DatabasePath      string   `json:"database_path"`
		ForumBaseURL      string   `json:"forum_base_url"`
		HarvestMode       string   `json:"harvest_mode"`
		GeneratorReady    bool     `json:"generator_ready"`
		Model             string   `json:"model"`
		CourseDirectories []string `json:"course_directories"`
	} `json:"config"`
}

func (r *statusResponse) toStatus() *cli.Status {
	return &cli.Status{
		DatabasePath:   r.Config.DatabasePath,
		ForumPosts:     r.ForumPosts,
		CourseSections: r.CourseSections,
		DiskUsageBytes: r.DiskUsageBytes,
		ForumBaseURL:   r.Config.ForumBaseURL,
		HarvestMode:    r.Config.HarvestMode,
		GeneratorReady: r.Config.GeneratorReady,
		Model:          r.Config.Model,
		CourseDirs:     r.Config.CourseDirectories,
	}
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.toStatus(), nil
}

// Components holds initialized services.
type Components struct {
	Storage *storage.SQLiteStorage
	Service *tutor.Service
	Loader  *course.Loader
}

// Close releases the database.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// harvesterOptions maps the resolved forum config onto harvester settings.
func harvesterOptions(cfg *config.Config) (forum.Options, error) {
	mode, err := forum.ParseMode(cfg.Forum.Mode)
	if err != nil {
		return forum.Options{}, err
	}
	return forum.Options{
		Mode:             mode,
		MaxPages:         cfg.Forum.MaxPages,
		RepliesPerTopic:  cfg.Forum.RepliesPerTopic,
		TermDelay:        cfg.Forum.TermDelay,
		Workers:          cfg.Forum.Workers,
		MaxCategoryPages: cfg.Forum.MaxCategoryPages,
	}, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, svcOpts ...tutor.Option) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logger),
		storage.WithSnippetLength(cfg.Search.SnippetLength))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	extractor := keyword.NewExtractor(
		keyword.WithMaxKeywords(cfg.Search.MaxKeywords),
		keyword.WithMinLength(cfg.Search.MinKeywordLength))
	searcher := search.NewSearcher(store, extractor,
		search.WithLimit(cfg.Search.DefaultLimit),
		search.WithLogger(logger))

	composerOpts := []answer.Option{
		answer.WithLogger(logger),
		answer.WithSystemPrompt(cfg.Generator.SystemPrompt),
	}
	gen, err := generator.NewOpenAI(generator.Config{
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.TemperatureOrDefault(),
		Timeout:     cfg.Generator.Timeout,
	}, generator.WithLogger(logger))
	switch {
	case err == nil:
		composerOpts = append(composerOpts, answer.WithGenerator(gen))
	case errors.Is(err, generator.ErrUnavailable):
		logger.Info("no generator configured, answers use the rule-based fallback")
	default:
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	composer := answer.NewComposer(composerOpts...)

	harvestOpts, err := harvesterOptions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	client := forum.NewClient(cfg.Forum.BaseURL,
		forum.WithTimeout(cfg.Forum.RequestTimeout),
		forum.WithUserAgent(cfg.Forum.UserAgent),
		forum.WithRequestInterval(cfg.Forum.RequestInterval),
		forum.WithClientLogger(logger))
	harvester := forum.NewHarvester(client, harvestOpts, forum.WithLogger(logger))

	svc := tutor.New(store, searcher, composer, harvester, append([]tutor.Option{
		tutor.WithLogger(logger),
		tutor.WithSearchTerms(cfg.Forum.SearchTerms),
	}, svcOpts...)...)

	loader := course.NewLoader(store,
		course.WithExtensions(cfg.Course.Extensions),
		course.WithRecursive(cfg.Course.RecursiveOrDefault()),
		course.WithLogger(logger))

	return &Components{Storage: store, Service: svc, Loader: loader}, nil
}

func printUsage() {
	fmt.Println(`virtualta - Virtual Teaching Assistant for Tools in Data Science

Usage:
  virtualta server [flags]                 Start the HTTP API
  virtualta ask [flags] <question>         Answer a question
  virtualta refresh [flags]                Harvest forum posts into the knowledge base
  virtualta import [flags] <path>...       Load course material files or directories
  virtualta status [flags]                 Show knowledge base status
  virtualta version                        Show version
  virtualta help                           Show this help

Common Flags:
  --config string    Config file path (default: config.yaml; defaults are used when missing)
  --debug            Enable debug logging

Ask Flags:
  --server string    Server URL. Empty answers from the local database.
  --image string     Image file attached to the question
  --output string    Output format: text or json (default: text)

Refresh Flags:
  --start string     Window start date YYYY-MM-DD (default: forum.start_date)
  --end string       Window end date YYYY-MM-DD (default: forum.end_date)
  --mode string      quick or full (default: forum.mode)
  --category int     Harvest this category listing instead of search terms
  --export string    Also write the harvested posts to a JSON file

Status Flags:
  --server string    Server URL. Empty reads the local database.
  --output string    Output format: text or json (default: text)

Environment:
  OPENAI_API_KEY, VIRTUALTA_DATABASE_PATH and PORT override the config file.
  A .env file in the working directory is loaded first.

Examples:
  virtualta refresh --mode quick
  virtualta refresh --start 2025-01-01 --end 2025-04-14
  virtualta refresh --export tds_posts.json
  virtualta import ./course
  virtualta ask "When is the GA4 deadline?"
  virtualta ask --server http://localhost:5000 --output json "How do I submit GA5?"
  virtualta server`)
}
