package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-games/config"
	"github.com/aluiziolira/go-scrape-games/models"
	"github.com/aluiziolira/go-scrape-games/pipeline"
	"github.com/aluiziolira/go-scrape-games/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	limitDefault := defaultCfg.Limit
	if value, ok, err := config.EnvInt("SCRAPER_LIMIT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_LIMIT: %v\n", err)
		os.Exit(1)
	} else if ok {
		limitDefault = value
	}
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	downloadDefault := defaultCfg.DownloadImages
	if value, ok, err := config.EnvBool("SCRAPER_DOWNLOAD_IMAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_DOWNLOAD_IMAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		downloadDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	limit := flag.Int("n", limitDefault, "Number of games to scrape (0 = until pagination is exhausted)")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	downloadImages := flag.Bool("download-images", downloadDefault, "Download poster images")
	outputFile := flag.String("output", outputDefault, "Output file path")
	imageDir := flag.String("images-dir", defaultCfg.ImageDir, "Directory for downloaded poster images")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Listing URL to start from")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent item requests")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	rateLimitBackoffMs := flag.Int("rate-limit-backoff", 5000, "Backoff after a 429 without a Retry-After hint (milliseconds)")
	mismatchLimit := flag.Int("schema-mismatch-limit", defaultCfg.SchemaMismatchLimit, "Consecutive listing schema mismatches before aborting")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	cfg.Limit = *limit
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.RateLimitBackoff = time.Duration(*rateLimitBackoffMs) * time.Millisecond
	cfg.SchemaMismatchLimit = *mismatchLimit
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.DownloadImages = *downloadImages
	cfg.ImageDir = *imageDir
	cfg.RespectRobotsTxt = *respectRobots
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("limit", cfg.Limit),
		slog.Int("workers", cfg.Parallelism),
		slog.Bool("download_images", cfg.DownloadImages),
	)

	s, err := scraper.New(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	summary, err := s.Run(ctx, writer)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		if derr := writer.Discard(); derr != nil {
			slog.Error("discard partial output failed", slog.Any("error", derr))
		}
		printSummary(summary, cfg.OutputFile)
		os.Exit(1)
	}

	if err := writer.Close(); err != nil {
		slog.Error("publishing output failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(summary, cfg.OutputFile)
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(summary *models.RunSummary, outputFile string) {
	if summary == nil {
		return
	}

	duration := summary.EndTime.Sub(summary.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(summary.ItemsCollected) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Games collected:  %d\n", summary.ItemsCollected)
	fmt.Printf("  Games failed:     %d\n", summary.ItemsFailed)
	fmt.Printf("  Images saved:     %d\n", summary.ImagesDownloaded)
	fmt.Printf("  Images failed:    %d\n", summary.ImagesFailed)
	fmt.Printf("  Listing pages:    %d\n", summary.PagesFetched)
	fmt.Printf("  Retries:          %d\n", summary.Retries)
	fmt.Printf("  Duration:         %v\n", duration)
	fmt.Printf("  Items/sec:        %.2f\n", itemsPerSec)
	fmt.Printf("  Output file:      %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
