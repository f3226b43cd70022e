package downloader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Candle is one 1m OHLC bar as read back from a downloaded CSV.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// LoadCandles reads a CSV written by DownloadKlines.
func LoadCandles(filePath string) ([]Candle, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil { // header
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var candles []Candle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV record: %w", err)
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("malformed CSV record: %v", record)
		}
		candle, err := parseCandle(record)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandle(record []string) (Candle, error) {
	openTime, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("parse open_time %q: %w", record[0], err)
	}
	fields := [4]float64{}
	for i, raw := range record[1:5] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("parse candle field %q: %w", raw, err)
		}
		fields[i] = v
	}
	return Candle{
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
	}, nil
}
