package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/scanning"
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

	fs := ff.NewFlagSet("expense-tracker")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "expense-tracker.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Receipt file storage directory")
		ocrProvider = fs.StringLong("ocr-provider", "ocrspace", "OCR provider: 'ocrspace' or 'gemini'")
		ocrKey      = fs.StringLong("ocr-key", "", "OCR.space API key (or set OCR_SPACE_API_KEY env var)")
		ocrURL      = fs.StringLong("ocr-url", scanning.DefaultOCRSpaceURL, "OCR.space parse endpoint")
		ocrTimeout  = fs.DurationLong("ocr-timeout", scanning.DefaultOCRTimeout, "OCR request timeout, for either provider")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_TRACKER"),
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Initializing database...")
	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	recognizer, err := newRecognizer(*ocrProvider, *ocrKey, *ocrURL, *ocrTimeout, *geminiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize OCR", "provider", *ocrProvider, "error", err)
		os.Exit(1)
	}
	parser := scanning.NewParser(recognizer, slog.Default())
	defer parser.Close()

	slog.Info("Initializing storage...")
	store, err := expense.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := expense.NewService(db, parser, store)
	server := expense.NewServer(service, expense.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// newRecognizer builds the configured OCR backend. A missing key is not an
// error: the returned recognizer is nil and uploads that need OCR come back
// with an explanation instead of fields.
func newRecognizer(provider, ocrKey, ocrURL string, ocrTimeout time.Duration, geminiKey, geminiModel string) (scanning.Recognizer, error) {
	switch provider {
	case "ocrspace":
		if ocrKey == "" {
			ocrKey = os.Getenv("OCR_SPACE_API_KEY")
		}
		if ocrKey == "" {
			slog.Warn("OCR.space API key not set, scanned receipts will not be read")
			return nil, nil
		}
		slog.Info("Initializing OCR.space recognizer...", "url", ocrURL)
		return scanning.NewOCRSpace(scanning.OCRSpaceConfig{
			APIKey:  ocrKey,
			URL:     ocrURL,
			Timeout: ocrTimeout,
		}, slog.Default()), nil

	case "gemini":
		if geminiKey == "" {
			geminiKey = os.Getenv("GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini recognizer...", "model", geminiModel)
		gemini, err := scanning.NewGemini(context.Background(), geminiKey, geminiModel, ocrTimeout)
		if errors.Is(err, scanning.ErrOCRUnavailable) {
			slog.Warn("Gemini API key not set, scanned receipts will not be read")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return gemini, nil

	default:
		return nil, fmt.Errorf("invalid ocr provider %q, valid: ocrspace or gemini", provider)
	}
}
