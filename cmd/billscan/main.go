package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/hgupta/billscan/internal/bill"
	"github.com/hgupta/billscan/internal/extraction"
	"github.com/hgupta/billscan/internal/pipeline"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	defaults := pipeline.DefaultConfig()

	fs := ff.NewFlagSet("billscan")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "billscan.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./documents", "Storage directory path")
		extractorType = fs.StringLong("extractor", "gemini", "Extractor type: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		workers       = fs.IntLong("workers", 4, "Concurrent page workers")
		windowWidth   = fs.IntLong("window-width", defaults.WindowWidth, "Sliding window width in pixels")
		windowHeight  = fs.IntLong("window-height", defaults.WindowHeight, "Sliding window height in pixels")
		overlap       = fs.Float64Long("overlap", defaults.OverlapRatio, "Sliding window overlap ratio (0 to 0.9)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize extractor based on type
	var extractor extraction.Extractor
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	cfg := defaults
	cfg.WindowWidth = *windowWidth
	cfg.WindowHeight = *windowHeight
	cfg.OverlapRatio = *overlap

	// Initialize service
	billService := bill.NewService(db, extractor, store, cfg, *workers)

	// Initialize server
	basicAuth := bill.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := bill.NewServer(billService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
