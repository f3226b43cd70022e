package exchange

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	mdPongWait   = 60 * time.Second
	mdPingPeriod = (mdPongWait * 9) / 10
	mdRedialWait = 5 * time.Second
)

// MarketDataStream keeps one Gemini market-data WebSocket per symbol and
// tracks the last trade price. The stream is observational: the status
// monitor reads it between decision ticks, decisions never do.
type MarketDataStream struct {
	wsBaseURL string
	symbols   []string
	logger    *zap.SugaredLogger

	mu         sync.RWMutex
	lastPrices map[string]float64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMarketDataStream builds a stream for the given symbols; Start connects.
func NewMarketDataStream(wsBaseURL string, symbols []string, logger *zap.SugaredLogger) *MarketDataStream {
	return &MarketDataStream{
		wsBaseURL:  wsBaseURL,
		symbols:    symbols,
		logger:     logger,
		lastPrices: make(map[string]float64),
		stopChan:   make(chan struct{}),
	}
}

// Start launches one reconnecting reader per symbol.
func (s *MarketDataStream) Start() {
	for _, symbol := range s.symbols {
		s.wg.Add(1)
		go s.connectLoop(symbol)
	}
}

// Stop terminates every reader and waits for them to exit.
func (s *MarketDataStream) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// LastPrice returns the most recent trade price seen for symbol.
func (s *MarketDataStream) LastPrice(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.lastPrices[symbol]
	return price, ok
}

// connectLoop dials, reads until the connection breaks, then redials.
func (s *MarketDataStream) connectLoop(symbol string) {
	defer s.wg.Done()

	wsURL := fmt.Sprintf("%s/v1/marketdata/%s?trades=true", s.wsBaseURL, symbol)
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			s.logger.Warnw("Market data dial failed, retrying", "symbol", symbol, "error", err)
			if !s.sleepOrStop(mdRedialWait) {
				return
			}
			continue
		}

		s.logger.Infow("Market data stream connected", "symbol", symbol)
		if err := s.readMessages(symbol, conn); err != nil {
			s.logger.Warnw("Market data stream dropped", "symbol", symbol, "error", err)
		}
		conn.Close()

		if !s.sleepOrStop(mdRedialWait) {
			return
		}
	}
}

func (s *MarketDataStream) sleepOrStop(d time.Duration) bool {
	select {
	case <-s.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

// marketDataUpdate is the subset of the v1 marketdata feed we consume.
type marketDataUpdate struct {
	Type   string `json:"type"`
	Events []struct {
		Type  string      `json:"type"`
		Price json.Number `json:"price"`
	} `json:"events"`
}

func (s *MarketDataStream) readMessages(symbol string, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(mdPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(mdPongWait))
		return nil
	})

	pingTicker := time.NewTicker(mdPingPeriod)
	defer pingTicker.Stop()
	pingStop := make(chan struct{})
	defer close(pingStop)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingStop:
				return
			case <-s.stopChan:
				return
			}
		}
	}()

	for {
		select {
		case <-s.stopChan:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			var update marketDataUpdate
			if err := json.Unmarshal(message, &update); err != nil {
				s.logger.Debugw("Unparseable market data message", "symbol", symbol, "error", err)
				continue
			}
			if update.Type != "update" {
				continue
			}

			for _, event := range update.Events {
				if event.Type != "trade" {
					continue
				}
				price, err := event.Price.Float64()
				if err != nil {
					continue
				}
				s.mu.Lock()
				s.lastPrices[symbol] = price
				s.mu.Unlock()
			}
		}
	}
}
