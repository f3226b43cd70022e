// Package bot contains the decision engines and the main trading loop. One
// Bot owns the ledger; all reads and writes happen from the loop goroutine,
// so no locking is needed past the exchange boundary.
package bot

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"gemini-dca-bot-go/internal/dashboard"
	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/ledger"
	"gemini-dca-bot-go/internal/metrics"
	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/reporter"
	"gemini-dca-bot-go/internal/schedule"
	"gemini-dca-bot-go/internal/signal"
)

// Bot wires the engines to one exchange and one ledger.
type Bot struct {
	cfg      *models.Config
	exchange exchange.Exchange
	ledger   *ledger.Ledger
	schedule *schedule.Schedule
	executor *OrderExecutor
	logger   *zap.SugaredLogger

	// Optional collaborators, nil when not configured.
	stream    *exchange.MarketDataStream
	reporter  *reporter.Reporter
	dashboard *dashboard.Client

	stop chan struct{}
	runs int
}

// New builds a Bot. stream, rep and dash may be nil.
func New(cfg *models.Config, ex exchange.Exchange, led *ledger.Ledger, sched *schedule.Schedule,
	stream *exchange.MarketDataStream, rep *reporter.Reporter, dash *dashboard.Client,
	logger *zap.SugaredLogger) *Bot {
	return &Bot{
		cfg:       cfg,
		exchange:  ex,
		ledger:    led,
		schedule:  sched,
		executor:  NewOrderExecutor(ex, cfg.MaxRetries, time.Duration(cfg.PollIntervalMs)*time.Millisecond, logger),
		logger:    logger,
		stream:    stream,
		reporter:  rep,
		dashboard: dash,
		stop:      make(chan struct{}),
	}
}

// TradeSymbol runs one buy pass and one sell pass for a symbol, then refreshes
// the gauges for it.
func (b *Bot) TradeSymbol(symbol string) error {
	if _, err := b.runBuy(symbol); err != nil {
		return err
	}
	if _, err := b.runSell(symbol); err != nil {
		return err
	}
	metrics.OpenLots.WithLabelValues(symbol).Set(float64(b.ledger.Depth(symbol)))
	return nil
}

// RunOnce trades every configured symbol. Per-symbol failures are logged and
// skipped so one symbol's API trouble cannot starve the others; an order in
// an unrecognized state is the exception and aborts the run.
func (b *Bot) RunOnce() error {
	for _, symbol := range b.cfg.Symbols {
		if err := b.TradeSymbol(symbol); err != nil {
			if errors.Is(err, ErrUnknownOrderState) {
				return err
			}
			b.logger.Errorw("Trading pass failed", "symbol", symbol, "error", err)
		}
	}

	metrics.TotalOutlay.Set(b.ledger.TotalOutlay())
	b.runs++
	if b.reporter != nil && b.cfg.ReportEveryNRuns > 0 && b.runs%b.cfg.ReportEveryNRuns == 0 {
		b.report()
	}
	return nil
}

// Run ticks RunOnce at the configured interval until Stop is called or an
// unknown order state is seen.
func (b *Bot) Run() error {
	interval := time.Duration(b.cfg.TickIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.logger.Infow("Trading loop started",
		"symbols", b.cfg.Symbols, "tick_interval", interval, "dry_run", b.cfg.DryRun)

	for {
		select {
		case <-b.stop:
			b.logger.Info("Trading loop stopped")
			return nil
		case <-ticker.C:
			if err := b.RunOnce(); err != nil {
				return err
			}
		}
	}
}

// Stop asks Run to exit after the current pass.
func (b *Bot) Stop() {
	close(b.stop)
}

// report prints the state tables and pushes dashboard updates. Everything here
// is observational; failures are logged and dropped.
func (b *Bot) report() {
	signals := make([]*signal.Signal, 0, len(b.cfg.Symbols))
	lotsBySymbol := make(map[string][]models.Lot, len(b.cfg.Symbols))
	for _, symbol := range b.cfg.Symbols {
		quote, err := b.exchange.GetQuote(symbol)
		if err != nil {
			b.logger.Warnw("Report quote fetch failed", "symbol", symbol, "error", err)
			continue
		}
		lots := b.ledger.Lots(symbol)
		depth := len(lots)
		_, threshold := b.schedule.NextTradeParams(depth)
		sig := signal.Evaluate(symbol, *quote, lots, threshold, b.schedule.SellVolatility(depth))
		signals = append(signals, sig)
		if depth > 0 {
			lotsBySymbol[symbol] = lots
		}
		if b.stream != nil {
			if last, ok := b.stream.LastPrice(symbol); ok {
				b.logger.Infow("Last traded price", "symbol", symbol, "price", last)
			}
		}
	}

	cash := 0.0
	if balance, err := b.exchange.GetBalance("usd"); err != nil {
		b.logger.Warnw("Report balance fetch failed", "error", err)
	} else if balance != nil {
		cash = balance.Available
		metrics.AvailableBalance.Set(cash)
	}

	if b.reporter != nil {
		b.reporter.PrintLots(lotsBySymbol)
		b.reporter.PrintSignals(signals)
		b.reporter.PrintSummary(b.ledger.TotalOutlay(), cash, equity(signals, cash))
	}
	if b.dashboard != nil {
		for _, sig := range signals {
			b.dashboard.Sync(sig)
		}
	}
}

// equity is cash plus every position marked at the current bid.
func equity(signals []*signal.Signal, cash float64) float64 {
	total := cash
	for _, sig := range signals {
		total += sig.TotalQuantity * sig.Quote.Bid
	}
	return total
}
