package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gemini-dca-bot-go/internal/bot"
	"gemini-dca-bot-go/internal/config"
	"gemini-dca-bot-go/internal/dashboard"
	"gemini-dca-bot-go/internal/downloader"
	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/ledger"
	"gemini-dca-bot-go/internal/logger"
	"gemini-dca-bot-go/internal/metrics"
	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/persistence"
	"gemini-dca-bot-go/internal/reporter"
	"gemini-dca-bot-go/internal/schedule"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "live", "run mode: live or backtest")
	dataDir := flag.String("data", "data/candles", "backtest: candle cache directory")
	btSymbol := flag.String("symbol", "btcusd", "backtest: symbol to replay")
	btStart := flag.String("start", "", "backtest: start date (YYYY-MM-DD)")
	btEnd := flag.String("end", "", "backtest: end date (YYYY-MM-DD)")
	flag.Parse()

	// Default console logger so config loading failures are still logged.
	logger.Init(models.LogConfig{Level: "info", Output: "console"})

	// Credentials live in .env, never in the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.S().Fatalf("load config: %v", err)
	}
	logger.Init(cfg.LogConfig)
	log := logger.S()

	switch *mode {
	case "live":
		if err := runLive(cfg); err != nil {
			log.Fatalf("bot exited with error: %v", err)
		}
	case "backtest":
		if err := runBacktest(cfg, *dataDir, *btSymbol, *btStart, *btEnd); err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runLive(cfg *models.Config) error {
	log := logger.S()

	apiKey := os.Getenv("GEMINI_API_KEY")
	secretKey := os.Getenv("GEMINI_SECRET_KEY")
	if apiKey == "" || secretKey == "" {
		return fmt.Errorf("GEMINI_API_KEY and GEMINI_SECRET_KEY must be set")
	}

	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer repo.Close()

	led, err := ledger.Open(repo, log)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	sched, err := schedule.New(cfg)
	if err != nil {
		return err
	}

	ex := exchange.NewGeminiExchange(apiKey, secretKey, cfg.APIBaseURL, log)

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
		log.Infow("Metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	stream := exchange.NewMarketDataStream(cfg.WSBaseURL, cfg.Symbols, log)
	stream.Start()
	defer stream.Stop()

	dash := dashboard.New(cfg.Notion, log)
	rep := reporter.New(os.Stdout)

	b := bot.New(cfg, ex, led, sched, stream, rep, dash, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Infow("Shutdown signal received", "signal", s)
		b.Stop()
	}()

	return b.Run()
}

func runBacktest(cfg *models.Config, dataDir, symbol, start, end string) error {
	log := logger.S()

	startTime, err := time.Parse("2006-01-02", start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	endTime, err := time.Parse("2006-01-02", end)
	if err != nil {
		return fmt.Errorf("parse -end: %w", err)
	}

	dataFile := filepath.Join(dataDir, fmt.Sprintf("%s_%s_%s_1m.csv", symbol, start, end))
	dl := downloader.NewKlineDownloader(log)
	if err := dl.DownloadKlines(symbol, dataFile, startTime, endTime); err != nil {
		return err
	}
	candles, err := downloader.LoadCandles(dataFile)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles in %s", dataFile)
	}
	log.Infow("Backtest starting", "symbol", symbol, "candles", len(candles))

	repo := persistence.NewMemoryRepository()
	led, err := ledger.Open(repo, log)
	if err != nil {
		return err
	}
	sched, err := schedule.New(cfg)
	if err != nil {
		return err
	}

	ex := exchange.NewPaperExchange(cfg.InitialBalance, log)
	btCfg := *cfg
	btCfg.Symbols = []string{symbol}
	btCfg.DryRun = false
	btCfg.PollIntervalMs = 0

	b := bot.New(&btCfg, ex, led, sched, nil, nil, nil, log)

	for _, candle := range candles {
		ex.SetCandle(symbol, candle.Open, candle.High, candle.Low, candle.Close, time.UnixMilli(candle.OpenTime))
		if err := b.TradeSymbol(symbol); err != nil {
			return err
		}
	}

	rep := reporter.New(os.Stdout)
	lots := led.Lots(symbol)
	if len(lots) > 0 {
		rep.PrintLots(map[string][]models.Lot{symbol: lots})
	}
	equity := ex.Cash()
	if quote, err := ex.GetQuote(symbol); err == nil {
		for _, lot := range lots {
			equity += lot.Quantity * quote.Bid
		}
	}
	rep.PrintSummary(led.TotalOutlay(), ex.Cash(), equity)
	log.Infow("Backtest finished",
		"open_lots", len(lots), "outlay", led.TotalOutlay(), "cash", ex.Cash(), "equity", equity)
	return nil
}
