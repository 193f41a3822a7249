package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"marketagg/internal/apperr"
	"marketagg/internal/model"

	"github.com/gorilla/websocket"
)

// WSMessage is the wire shape expected from a streaming exchange feed:
// one trade per JSON text frame.
type WSMessage struct {
	Symbol string  `json:"symbol"`
	Price  string  `json:"price"`
	Volume string  `json:"volume"`
	TS     int64   `json:"ts"` // epoch milliseconds
}

// WSConfig configures a streaming websocket adapter.
type WSConfig struct {
	Exchange string
	URL      string

	// ReconnectDelay is the initial backoff before a reconnect attempt.
	// Defaults to 2s.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WSAdapter streams ticks from a plain-JSON websocket feed, reconnecting
// with exponential backoff on disconnect. Grounded on the teacher's
// wssim.Ingest.
type WSAdapter struct {
	base
	cfg WSConfig
}

// NewWSAdapter validates cfg.URL and returns a ready-to-start adapter.
func NewWSAdapter(cfg WSConfig) (*WSAdapter, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("adapter: parse ws url: %w", err)
	}
	return &WSAdapter{base: newBase(cfg.Exchange, model.SourceStreaming), cfg: cfg}, nil
}

// Start connects and streams until ctx is cancelled or Stop is called,
// reconnecting with exponential backoff on any disconnect in between.
func (a *WSAdapter) Start(ctx context.Context, sink Sink) error {
	if !a.start() {
		return fmt.Errorf("adapter: %s already running", a.exchange)
	}
	defer a.reset()

	delay := a.cfg.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if a.isStopping() {
			return nil
		}

		err := a.runOnce(ctx, sink)
		if err == nil {
			return nil
		}

		a.status.markOffline(err)
		log.Printf("[adapter:%s] %v, reconnecting in %s", apperr.NewAdapterFailureError(a.exchange, err), delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > a.cfg.MaxReconnectDelay {
			delay = a.cfg.MaxReconnectDelay
		}
	}
}

func (a *WSAdapter) Stop() {
	a.base.stop()
}

func (a *WSAdapter) runOnce(ctx context.Context, sink Sink) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	a.status.markOnline()
	log.Printf("[adapter:%s] connected to %s", a.exchange, a.cfg.URL)

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		if a.isStopping() {
			return nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[adapter:%s] parse error: %v (raw: %s)", a.exchange, err, raw)
			continue
		}
		tick, err := msg.toRawTick(a.exchange)
		if err != nil {
			log.Printf("[adapter:%s] skipping malformed tick: %v", a.exchange, err)
			continue
		}

		a.status.recordTick(tick.EventTS)
		if err := sink.Write(ctx, tick); err != nil {
			return nil
		}
	}
}

func (m WSMessage) toRawTick(exchange string) (model.RawTick, error) {
	if m.Symbol == "" {
		return model.RawTick{}, fmt.Errorf("missing symbol")
	}
	price, err := parseDecimal(m.Price)
	if err != nil {
		return model.RawTick{}, fmt.Errorf("price: %w", err)
	}
	volume, err := parseDecimal(m.Volume)
	if err != nil {
		return model.RawTick{}, fmt.Errorf("volume: %w", err)
	}
	eventTS := time.Now().UTC()
	if m.TS > 0 {
		eventTS = time.UnixMilli(m.TS).UTC()
	}
	return model.RawTick{
		Exchange:   exchange,
		SourceType: model.SourceStreaming,
		Symbol:     m.Symbol,
		Price:      price,
		Volume:     volume,
		EventTS:    eventTS,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
