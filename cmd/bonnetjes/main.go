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

	"github.com/zombor/bonnetjes/internal/expense"
	"github.com/zombor/bonnetjes/internal/mailer"
	"github.com/zombor/bonnetjes/internal/scanning"
	"github.com/zombor/bonnetjes/pkg/logging"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("bonnetjes")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "bonnetjes.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./bonnen", "Directory for receipt files")
		scannerType   = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'http'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		ocrURL        = fs.StringLong("ocr-url", "", "OCR endpoint URL for the 'http' scanner")
		ocrKey        = fs.StringLong("ocr-key", "", "Bearer token for the OCR endpoint")
		ocrPerMinute  = fs.IntLong("ocr-per-minute", 0, "Maximum OCR calls per minute (0 is unlimited)")
		maxImageEdge  = fs.IntLong("max-image-edge", scanning.DefaultMaxEdge, "Longest image side sent to OCR, in pixels")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		authPassHash  = fs.StringLong("auth-pass-hash", "", "Basic auth bcrypt password hash (optional)")
		smtpHost      = fs.StringLong("smtp-host", "", "SMTP server; submissions are only logged when empty")
		smtpPort      = fs.IntLong("smtp-port", 587, "SMTP port")
		smtpUser      = fs.StringLong("smtp-user", "", "SMTP username")
		smtpPass      = fs.StringLong("smtp-pass", "", "SMTP password")
		mailFrom      = fs.StringLong("mail-from", "", "Sender address of declarations")
		mailTo        = fs.StringLong("mail-to", "", "Recipient address of declarations")
		employee      = fs.StringLong("employee", "", "Name printed on exported declarations")
		logLevel      = fs.StringLong("log-level", "", "Log level: debug, info, warn or error (or set LOG_LEVEL)")
		shutdownAfter = fs.DurationLong("shutdown-timeout", 15*time.Second, "Grace period for open requests on shutdown")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BONNETJES"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Setup(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "path", *dbPath)
	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(ctx, apiKey, *geminiModel, *maxImageEdge)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel, *maxImageEdge)
	case "http":
		slog.Info("Initializing OCR endpoint scanner...", "url", *ocrURL)
		scanner, err = scanning.NewHTTPOCR(*ocrURL, *ocrKey, *maxImageEdge)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or http")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := expense.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var sender mailer.Sender = mailer.Discard{To: *mailTo}
	if *smtpHost != "" {
		sender, err = mailer.NewSMTP(mailer.SMTPConfig{
			Host:     *smtpHost,
			Port:     *smtpPort,
			Username: *smtpUser,
			Password: *smtpPass,
			From:     *mailFrom,
			To:       *mailTo,
		})
		if err != nil {
			slog.Error("Failed to configure SMTP", "error", err)
			os.Exit(1)
		}
		slog.Info("Declarations are mailed", "smtp", *smtpHost, "to", *mailTo)
	} else {
		slog.Warn("No SMTP server configured, submissions are logged but not mailed")
	}

	service := expense.NewService(db, scanner, store, sender)
	service.SetOCRRate(*ocrPerMinute)
	service.SetEmployee(*employee)

	basicAuth := expense.BasicAuth{
		Username:     *authUser,
		Password:     *authPass,
		PasswordHash: *authPassHash,
	}
	server := expense.NewServer(service, basicAuth)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "version", version)
	if *authUser != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownAfter)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down cleanly", "error", err)
	}
}
