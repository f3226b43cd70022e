// Package downloader fetches historical 1m candles for backtests and caches
// them as CSV. Binance is used as the data source because its public kline
// endpoint needs no credentials and covers every traded pair.
package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

// KlineDownloader pulls 1m klines from Binance's public API.
type KlineDownloader struct {
	client *binance.Client
	logger *zap.SugaredLogger
}

func NewKlineDownloader(logger *zap.SugaredLogger) *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""),
		logger: logger,
	}
}

// binanceSymbol maps a lower-case usd pair to its Binance USDT market,
// e.g. btcusd -> BTCUSDT.
func binanceSymbol(symbol string) string {
	base := strings.TrimSuffix(strings.ToLower(symbol), "usd")
	return strings.ToUpper(base) + "USDT"
}

// DownloadKlines writes 1m candles for the pair over [startTime, endTime) to
// filePath. An existing file is treated as a cache and left untouched.
func (d *KlineDownloader) DownloadKlines(symbol, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		d.logger.Infow("Using cached candle data", "file", filePath)
		return nil
	}

	market := binanceSymbol(symbol)
	d.logger.Infow("Downloading candle data",
		"symbol", symbol, "market", market,
		"start", startTime.Format("2006-01-02"), "end", endTime.Format("2006-01-02"))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"open_time", "open", "high", "low", "close", "volume", "close_time"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for t := startTime; t.Before(endTime); {
		klines, err := d.client.NewKlinesService().
			Symbol(market).
			Interval("1m").
			StartTime(t.UnixMilli()).
			Limit(1000).
			Do(context.Background())
		if err != nil {
			return fmt.Errorf("download klines: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			record := []string{
				fmt.Sprintf("%d", k.OpenTime),
				k.Open,
				k.High,
				k.Low,
				k.Close,
				k.Volume,
				fmt.Sprintf("%d", k.CloseTime),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write CSV record: %w", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		d.logger.Debugw("Downloaded candles", "through", t.Format("2006-01-02 15:04:05"))
		time.Sleep(200 * time.Millisecond)
	}

	d.logger.Infow("Candle data saved", "file", filePath)
	return nil
}
